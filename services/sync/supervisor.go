package sync

import (
	"context"
	"math/rand"
	gosync "sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/interfaces"
	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
	"github.com/mailfold/mailfold/internal/utils"
)

// Supervisor owns the full lifecycle of one account: session, watermark
// tracker, and the trigger loop that funnels IDLE notifications and the
// fallback timer into fetch attempts.
type Supervisor struct {
	account     *models.Account
	cfg         *config.EngineConfig
	factory     interfaces.SessionFactory
	sink        interfaces.MessageSink
	checkpoints interfaces.SyncCheckpointRepository
	log         logger.Logger

	tracker *Tracker
	session interfaces.AccountSession

	statusMu gosync.Mutex
	status   interfaces.AccountStatus

	stop     chan struct{}
	stopOnce gosync.Once
	done     chan struct{}

	// ready closes once the setup phase has finished, successfully or not.
	ready     chan struct{}
	readyOnce gosync.Once
}

func newSupervisor(
	account *models.Account,
	cfg *config.EngineConfig,
	factory interfaces.SessionFactory,
	sink interfaces.MessageSink,
	checkpoints interfaces.SyncCheckpointRepository,
	log logger.Logger,
) *Supervisor {
	return &Supervisor{
		account:     account,
		cfg:         cfg,
		factory:     factory,
		sink:        sink,
		checkpoints: checkpoints,
		log:         log,
		status:      interfaces.AccountStatus{Label: account.DisplayLabel()},
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		ready:       make(chan struct{}),
	}
}

// run drives the account until the engine stops, the account is removed, or
// setup fails. Setup failures are fatal to this account only.
func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer s.markReady()
	defer tracing.RecoverAndLogToJaeger(s.log)

	session, err := s.setup(ctx)
	if err != nil {
		s.log.Errorf("[%s] Account setup failed: %v", s.account.ID, err)
		s.setError(err)
		return
	}
	s.session = session
	defer s.session.Close()

	s.setConnected(true)
	s.markReady()

	// Initial catch-up over the lookback window (or from the stored
	// checkpoint when warm-restarting).
	s.attemptSync(ctx)

	notifications, err := s.session.Listen(ctx)
	if err != nil {
		s.log.Errorf("[%s] Failed to start IDLE monitoring: %v", s.account.ID, err)
		s.setError(err)
		return
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.stop:
			return

		case notification, ok := <-notifications:
			if !ok {
				// Session died. Reconnect with backoff; the watermark
				// survives, so the catch-up fetch misses nothing.
				s.setConnected(false)
				notifications = s.reconnectWithBackoff(ctx)
				if notifications == nil {
					return
				}
				s.setConnected(true)
				s.attemptSync(ctx)
				continue
			}
			if notification.Mailbox != s.account.Mailbox {
				continue
			}
			s.log.Debugf("[%s][%s] Server push, %d messages", s.account.ID, notification.Mailbox, notification.Messages)
			s.attemptSync(ctx)

		case <-ticker.C:
			s.attemptSync(ctx)
		}
	}
}

// setup connects, selects the mailbox, and seeds the watermark tracker.
func (s *Supervisor) setup(ctx context.Context) (interfaces.AccountSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Supervisor.setup")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagMailbox(span, s.account.Mailbox)

	session, err := s.connectSession(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.tracker = NewTracker(s.initialWatermark(ctx))
	return session, nil
}

// connectSession builds a fresh session and brings it to a fetchable state.
func (s *Supervisor) connectSession(ctx context.Context) (interfaces.AccountSession, error) {
	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	session := s.factory(s.account)
	if err := session.Connect(connectCtx); err != nil {
		return nil, err
	}
	if err := session.OpenMailbox(connectCtx, s.account.Mailbox); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// initialWatermark seeds the tracker: the stored checkpoint when one exists
// inside the lookback window, the window start otherwise.
func (s *Supervisor) initialWatermark(ctx context.Context) time.Time {
	start := utils.Now().Add(-s.cfg.LookbackWindow)

	checkpoint, err := s.checkpoints.GetCheckpoint(ctx, s.account.ID, s.account.Mailbox)
	if err != nil {
		s.log.Warnf("[%s] Could not load checkpoint, using lookback window: %v", s.account.ID, err)
		return start
	}
	if checkpoint != nil && checkpoint.LastSyncTime.After(start) {
		s.log.Infof("[%s][%s] Resuming from checkpoint %s", s.account.ID, s.account.Mailbox, checkpoint.LastSyncTime.Format(time.RFC3339))
		return checkpoint.LastSyncTime
	}
	return start
}

// attemptSync is one guarded incremental fetch. A busy account or unusable
// session makes the attempt a no-op; a fetch error releases the guard and
// leaves the watermark unchanged so the next trigger retries the same range.
func (s *Supervisor) attemptSync(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Supervisor.attemptSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagMailbox(span, s.account.Mailbox)

	s.touchLastChecked()

	if s.session == nil || !s.session.IsUsable() {
		s.log.Debugf("[%s] Session not usable, skipping trigger", s.account.ID)
		span.SetTag("skipped", "session not usable")
		return
	}
	if !s.tracker.TryBegin() {
		s.log.Debugf("[%s] Sync already in progress, skipping trigger", s.account.ID)
		span.SetTag("skipped", "busy")
		return
	}
	defer s.tracker.End()

	since := s.tracker.LastSyncTime()
	span.SetTag("since", since.Format(time.RFC3339))

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	envelopes, err := s.session.FetchSince(fetchCtx, since)
	if err != nil {
		s.log.Warnf("[%s] Fetch failed, watermark unchanged: %v", s.account.ID, err)
		tracing.TraceErr(span, err)
		s.setError(err)
		return
	}

	// Advance to the newest arrival seen, or to now when nothing arrived.
	watermark := utils.Now()
	if len(envelopes) > 0 {
		watermark = since
		for _, envelope := range envelopes {
			if envelope.ArrivalAt.After(watermark) {
				watermark = envelope.ArrivalAt
			}
		}
	}

	var lastUID uint32
	for _, envelope := range envelopes {
		if err := s.sink.Deliver(ctx, envelope); err != nil {
			s.log.Errorf("[%s] Sink rejected message uid=%d: %v", s.account.ID, envelope.UID, err)
		}
		if envelope.UID > lastUID {
			lastUID = envelope.UID
		}
	}

	s.tracker.Advance(watermark)
	s.setSynced(s.tracker.LastSyncTime())
	s.saveCheckpoint(ctx, lastUID)

	if len(envelopes) > 0 {
		s.log.Infof("[%s][%s] Emitted %d message(s), watermark now %s",
			s.account.ID, s.account.Mailbox, len(envelopes), watermark.Format(time.RFC3339))
	}
	span.SetTag("emitted", len(envelopes))
}

// saveCheckpoint persists the watermark for warm restarts. Best effort: the
// in-memory tracker stays authoritative and a write failure never fails a
// sync.
func (s *Supervisor) saveCheckpoint(ctx context.Context, lastUID uint32) {
	checkpoint := &models.SyncCheckpoint{
		AccountID:    s.account.ID,
		Mailbox:      s.account.Mailbox,
		LastSyncTime: s.tracker.LastSyncTime(),
		LastUID:      lastUID,
	}
	if err := s.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		s.log.Warnf("[%s] Could not persist checkpoint: %v", s.account.ID, err)
	}
}

// reconnectWithBackoff replaces a dead session, retrying with bounded
// exponential backoff plus jitter. Returns the new notification stream, or
// nil when attempts are exhausted or the supervisor is stopping.
func (s *Supervisor) reconnectWithBackoff(ctx context.Context) <-chan interfaces.MailboxNotification {
	s.session.Close()

	backoff := time.Second

	for attempt := 1; attempt <= s.cfg.ReconnectMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-time.After(addJitter(backoff)):
		}

		s.log.Infof("[%s] Reconnect attempt %d/%d", s.account.ID, attempt, s.cfg.ReconnectMaxAttempts)

		session, err := s.connectSession(ctx)
		if err != nil {
			s.log.Warnf("[%s] Reconnect attempt %d failed: %v", s.account.ID, attempt, err)
			s.setError(err)
			backoff *= 2
			if backoff > s.cfg.ReconnectMaxBackoff {
				backoff = s.cfg.ReconnectMaxBackoff
			}
			continue
		}

		notifications, err := session.Listen(ctx)
		if err != nil {
			session.Close()
			s.setError(err)
			continue
		}

		s.session = session
		s.log.Infof("[%s] Reconnected", s.account.ID)
		return notifications
	}

	err := mailerrors.NewConnectionError(mailerrors.ErrSessionNotUsable)
	s.log.Errorf("[%s] Giving up after %d reconnect attempts", s.account.ID, s.cfg.ReconnectMaxAttempts)
	s.setError(err)
	return nil
}

// addJitter spreads reconnect storms out by +/-20%.
func addJitter(d time.Duration) time.Duration {
	factor := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * factor)
}

func (s *Supervisor) markReady() {
	s.readyOnce.Do(func() {
		close(s.ready)
	})
}

func (s *Supervisor) requestStop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Supervisor) Status() interfaces.AccountStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

func (s *Supervisor) setConnected(connected bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Connected = connected
	if connected {
		s.status.LastError = ""
	}
}

// setError records the failure without touching the connected flag; a
// recoverable fetch error does not mean the link is down.
func (s *Supervisor) setError(err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastError = err.Error()
}

func (s *Supervisor) setSynced(watermark time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastSyncTime = watermark
}

func (s *Supervisor) touchLastChecked() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastChecked = utils.Now()
}
