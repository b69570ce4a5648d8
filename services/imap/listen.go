package imap

import (
	"context"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/mailfold/mailfold/interfaces"
	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/tracing"
)

const notificationBuffer = 16

// Listen starts IDLE monitoring and returns the notification stream. The
// channel is closed when the session dies, which is the supervisor's signal
// to reconnect. Pending notifications are dropped when the buffer is full;
// triggers are collapsible, the next fetch covers everything since the
// watermark anyway.
func (s *Session) Listen(ctx context.Context) (<-chan interfaces.MailboxNotification, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Session.Listen")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)

	s.mu.Lock()
	c := s.client
	if c == nil || !s.usable {
		s.mu.Unlock()
		return nil, mailerrors.ErrSessionNotUsable
	}
	if s.listening {
		s.mu.Unlock()
		return s.notifications, nil
	}

	updates := make(chan client.Update, 100)
	c.Updates = updates
	s.notifications = make(chan interfaces.MailboxNotification, notificationBuffer)
	s.listening = true
	s.mu.Unlock()

	if supported, err := c.Support("IDLE"); err != nil || !supported {
		s.log.Warnf("[%s] Server does not advertise IDLE, relying on client-side polling", s.account.ID)
	}

	go s.forwardUpdates(updates)
	go s.runIdleLoop(ctx, c)

	return s.notifications, nil
}

// forwardUpdates converts raw client updates into mailbox notifications.
func (s *Session) forwardUpdates(updates chan client.Update) {
	defer close(s.notifications)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			mailboxUpdate, isMailbox := update.(*client.MailboxUpdate)
			if !isMailbox || mailboxUpdate.Mailbox == nil {
				continue
			}

			notification := interfaces.MailboxNotification{
				Mailbox:  mailboxUpdate.Mailbox.Name,
				Messages: mailboxUpdate.Mailbox.Messages,
			}
			select {
			case s.notifications <- notification:
			default:
				s.log.Debugf("[%s] Dropping notification, buffer full", s.account.ID)
			}
		case <-s.dead:
			return
		}
	}
}

// runIdleLoop keeps an IDLE command outstanding, yielding the connection to
// commands on request and restarting IDLE afterwards.
func (s *Session) runIdleLoop(ctx context.Context, c *client.Client) {
	defer func() {
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
		close(s.dead)
	}()

	for {
		stop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() {
			c.Timeout = 0
			idleDone <- c.Idle(stop, &client.IdleOptions{
				LogoutTimeout: idleLogoutTimeout,
				PollInterval:  idlePollInterval,
			})
		}()

		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return

		case <-s.closing:
			close(stop)
			<-idleDone
			return

		case req := <-s.pauseCh:
			close(stop)
			idleErr := <-idleDone
			close(req.acquired)
			<-req.release
			if idleErr != nil && ctx.Err() == nil {
				s.log.Warnf("[%s] IDLE ended with error: %v", s.account.ID, idleErr)
				s.markUnusable()
				return
			}

		case err := <-idleDone:
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warnf("[%s] IDLE error: %v", s.account.ID, err)
				}
				s.markUnusable()
				return
			}
			// Clean return, restart the cycle.
		}
	}
}
