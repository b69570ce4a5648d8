package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/mailfold/mailfold/interfaces"
	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
)

const (
	dialTimeout    = 30 * time.Second
	commandTimeout = 30 * time.Second
	logoutTimeout  = 5 * time.Second

	// IDLE sessions are restarted before the RFC 2177 30 minute cutoff.
	idleLogoutTimeout = 25 * time.Minute
	idlePollInterval  = 20 * time.Minute
)

// Session owns one live IMAP connection for one account. It satisfies
// interfaces.AccountSession: connect, select, incremental fetch, and an IDLE
// notification stream. While the IDLE loop is running, commands pause it,
// run, and hand the connection back (servers reject commands mid-IDLE).
type Session struct {
	account *models.Account
	log     logger.Logger

	mu      sync.Mutex
	client  *client.Client
	usable  bool
	mailbox string

	// cmdMu serializes FetchSince callers against each other.
	cmdMu sync.Mutex

	listening     bool
	pauseCh       chan *pauseRequest
	dead          chan struct{}
	closeOnce     sync.Once
	closing       chan struct{}
	notifications chan interfaces.MailboxNotification
}

// pauseRequest asks the IDLE loop to yield the connection to a command.
type pauseRequest struct {
	acquired chan struct{}
	release  chan struct{}
}

func NewSession(account *models.Account, log logger.Logger) *Session {
	return &Session{
		account: account,
		log:     log,
		pauseCh: make(chan *pauseRequest),
		dead:    make(chan struct{}),
		closing: make(chan struct{}),
	}
}

// NewSessionFactory adapts NewSession to the factory shape supervisors use
// for initial connections and reconnects.
func NewSessionFactory(log logger.Logger) interfaces.SessionFactory {
	return func(account *models.Account) interfaces.AccountSession {
		return NewSession(account, log)
	}
}

// Connect establishes the transport and logs in. Any failure is returned as a
// ConnectionError and leaves the session unusable.
func (s *Session) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Session.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	span.SetTag("server", s.account.Server)
	span.SetTag("port", s.account.Port)
	span.SetTag("tls", s.account.TLS)

	serverAddr := fmt.Sprintf("%s:%d", s.account.Server, s.account.Port)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}

	var c *client.Client
	var err error

	if s.account.TLS {
		tlsConfig := &tls.Config{
			ServerName: s.account.Server,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}

	if err != nil {
		tracing.TraceErr(span, err)
		return mailerrors.NewConnectionError(fmt.Errorf("failed to connect to %s: %w", serverAddr, err))
	}

	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return mailerrors.NewConnectionError(fmt.Errorf("failed to get capabilities: %w", err))
	}
	span.SetTag("server.capabilities", fmt.Sprintf("%v", caps))

	c.Timeout = commandTimeout
	if err := c.Login(s.account.Username, s.account.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return mailerrors.NewConnectionError(fmt.Errorf("failed to login as %s: %w", s.account.Username, err))
	}
	c.Timeout = 0

	s.log.Infof("[%s] Connected and logged in to %s", s.account.ID, serverAddr)

	s.mu.Lock()
	s.client = c
	s.usable = true
	s.mu.Unlock()

	return nil
}

// OpenMailbox selects the mailbox that will serve fetches.
func (s *Session) OpenMailbox(ctx context.Context, name string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Session.OpenMailbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagMailbox(span, name)

	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return mailerrors.NewMailboxError(name, mailerrors.ErrSessionNotUsable)
	}

	c.Timeout = commandTimeout
	mbox, err := c.Select(name, true)
	c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		s.markUnusable()
		return mailerrors.NewMailboxError(name, err)
	}

	span.SetTag("messages", mbox.Messages)
	s.log.Infof("[%s][%s] Selected mailbox with %d messages", s.account.ID, name, mbox.Messages)

	s.mu.Lock()
	s.mailbox = name
	s.mu.Unlock()

	return nil
}

// IsUsable reports whether the session can currently serve fetches.
func (s *Session) IsUsable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usable && s.client != nil
}

func (s *Session) currentMailbox() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mailbox
}

func (s *Session) markUnusable() {
	s.mu.Lock()
	s.usable = false
	s.mu.Unlock()
}

// withConn runs fn holding exclusive use of the connection. If the IDLE loop
// is active it is paused first and resumed after fn returns.
func (s *Session) withConn(fn func(c *client.Client) error) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	c := s.client
	listening := s.listening
	s.mu.Unlock()

	if c == nil {
		return mailerrors.ErrSessionNotUsable
	}

	if listening {
		req := &pauseRequest{
			acquired: make(chan struct{}),
			release:  make(chan struct{}),
		}
		select {
		case s.pauseCh <- req:
			<-req.acquired
			defer close(req.release)
		case <-s.dead:
			return mailerrors.ErrSessionNotUsable
		}
	}

	return fn(c)
}

// Close tears the session down. Logout runs with a deadline so a wedged
// server cannot block shutdown.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)

		s.mu.Lock()
		c := s.client
		s.usable = false
		s.client = nil
		s.mu.Unlock()

		if c == nil {
			return
		}

		c.Timeout = logoutTimeout
		done := make(chan error, 1)
		go func() {
			done <- c.Logout()
		}()

		select {
		case err := <-done:
			if err != nil {
				s.log.Warnf("[%s] Error during logout: %v", s.account.ID, err)
			} else {
				s.log.Infof("[%s] Logged out", s.account.ID)
			}
		case <-time.After(logoutTimeout):
			s.log.Warnf("[%s] Logout timed out", s.account.ID)
		}
	})
}
