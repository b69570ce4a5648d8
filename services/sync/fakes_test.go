package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/models"
)

// fakeSession is a scriptable AccountSession: queue up fetch results or
// errors and inspect the calls afterwards.
type fakeSession struct {
	mu         gosync.Mutex
	usable     bool
	connectErr error
	mailboxErr error

	fetchQueue []fetchStep
	fetchDelay time.Duration
	fetchCalls int
	fetchSince []time.Time

	notifications chan interfaces.MailboxNotification
}

type fetchStep struct {
	envelopes []models.MessageEnvelope
	err       error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		notifications: make(chan interfaces.MailboxNotification, 16),
	}
}

func (f *fakeSession) queueFetch(envelopes []models.MessageEnvelope, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchQueue = append(f.fetchQueue, fetchStep{envelopes: envelopes, err: err})
}

func (f *fakeSession) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.usable = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) OpenMailbox(ctx context.Context, name string) error {
	return f.mailboxErr
}

func (f *fakeSession) IsUsable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usable
}

func (f *fakeSession) FetchSince(ctx context.Context, since time.Time) ([]models.MessageEnvelope, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.fetchSince = append(f.fetchSince, since)
	var step fetchStep
	if len(f.fetchQueue) > 0 {
		step = f.fetchQueue[0]
		f.fetchQueue = f.fetchQueue[1:]
	}
	delay := f.fetchDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return step.envelopes, step.err
}

func (f *fakeSession) Listen(ctx context.Context) (<-chan interfaces.MailboxNotification, error) {
	return f.notifications, nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	f.usable = false
	f.mu.Unlock()
}

func (f *fakeSession) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// collectSink records every delivered envelope.
type collectSink struct {
	mu         gosync.Mutex
	envelopes  []models.MessageEnvelope
	deliverErr error
}

func (c *collectSink) Deliver(ctx context.Context, envelope models.MessageEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deliverErr != nil {
		return c.deliverErr
	}
	c.envelopes = append(c.envelopes, envelope)
	return nil
}

func (c *collectSink) delivered() []models.MessageEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]models.MessageEnvelope, len(c.envelopes))
	copy(result, c.envelopes)
	return result
}

func newTestLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true, LogLevel: "error"})
	appLogger.InitLogger()
	return appLogger
}
