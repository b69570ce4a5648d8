package errors

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrSessionNotUsable is returned when a fetch is attempted on a dead session.
	ErrSessionNotUsable = errors.New("session not usable")
	// ErrAccountExists is returned when registering a duplicate account ID.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned for operations on unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
)

// ConnectionError is a transport or authentication failure while establishing
// an IMAP session. Fatal to the owning account supervisor during setup.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func NewConnectionError(err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Err: err}
}

func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// MailboxError is a failure to select the configured mailbox. Fatal to the
// owning account supervisor during setup.
type MailboxError struct {
	Mailbox string
	Err     error
}

func (e *MailboxError) Error() string {
	return "mailbox " + e.Mailbox + ": " + e.Err.Error()
}

func (e *MailboxError) Unwrap() error { return e.Err }

func NewMailboxError(mailbox string, err error) error {
	if err == nil {
		return nil
	}
	return &MailboxError{Mailbox: mailbox, Err: err}
}

func IsMailboxError(err error) bool {
	var target *MailboxError
	return errors.As(err, &target)
}

// FetchError is a protocol failure during an incremental fetch. Recoverable:
// the watermark is left unchanged and the next trigger retries.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "fetch error: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

func NewFetchError(err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Err: err}
}

func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

// IsDisconnect reports whether an error looks like a dropped IMAP connection.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}

	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection closed") ||
		strings.Contains(errorMsg, "i/o timeout") ||
		strings.Contains(errorMsg, "EOF") ||
		strings.Contains(errorMsg, "connection reset") ||
		strings.Contains(errorMsg, "broken pipe")
}
