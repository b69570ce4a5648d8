package interfaces

import (
	"context"
	"time"

	"github.com/mailfold/mailfold/internal/models"
)

// SyncEngine starts one account supervisor per configured account and keeps
// their failures isolated from each other.
type SyncEngine interface {
	Start(ctx context.Context) error
	Stop() error
	AddAccount(ctx context.Context, account *models.Account) error
	RemoveAccount(ctx context.Context, accountID string) error
	// WaitForSetup blocks until every registered account has finished its
	// setup phase, successfully or not, or ctx expires.
	WaitForSetup(ctx context.Context) error
	Status() map[string]AccountStatus
}

// AccountSession owns one live IMAP connection for one account.
type AccountSession interface {
	// Connect establishes the transport and logs in.
	Connect(ctx context.Context) error
	// OpenMailbox selects the mailbox that will serve fetches.
	OpenMailbox(ctx context.Context, name string) error
	// IsUsable reports whether the session can currently serve fetches.
	IsUsable() bool
	// FetchSince returns every message whose arrival time is at or after
	// since. The boundary is inclusive, so a message arriving exactly at the
	// watermark may be returned again.
	FetchSince(ctx context.Context, since time.Time) ([]models.MessageEnvelope, error)
	// Listen starts server push monitoring and returns the notification
	// stream. The channel is closed when the session dies.
	Listen(ctx context.Context) (<-chan MailboxNotification, error)
	Close()
}

// SessionFactory builds sessions; account supervisors use it for the initial
// connection and again on every reconnect attempt.
type SessionFactory func(account *models.Account) AccountSession

// MailboxNotification is an unsolicited server update: the mailbox path it
// concerns and the message count the server reported for it.
type MailboxNotification struct {
	Mailbox  string
	Messages uint32
}

// MessageSink receives each newly observed message. Delivery is at-least-once
// within a running process; deduplication is the sink's responsibility.
type MessageSink interface {
	Deliver(ctx context.Context, envelope models.MessageEnvelope) error
}

type AccountStatus struct {
	Label        string    `json:"label"`
	Connected    bool      `json:"connected"`
	LastError    string    `json:"lastError,omitempty"`
	LastSyncTime time.Time `json:"lastSyncTime"`
	LastChecked  time.Time `json:"lastChecked"`
}
