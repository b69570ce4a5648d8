package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/interfaces"
	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
)

const stopGracePeriod = 10 * time.Second

// Engine is the sync orchestrator: one supervisor goroutine per account,
// failures isolated per account, graceful shutdown of all of them.
type Engine struct {
	cfg         *config.EngineConfig
	factory     interfaces.SessionFactory
	sink        interfaces.MessageSink
	checkpoints interfaces.SyncCheckpointRepository
	log         logger.Logger

	mu          gosync.RWMutex
	supervisors map[string]*Supervisor
	ctx         context.Context
	cancel      context.CancelFunc
	wg          gosync.WaitGroup
}

func NewEngine(
	cfg *config.EngineConfig,
	factory interfaces.SessionFactory,
	sink interfaces.MessageSink,
	checkpoints interfaces.SyncCheckpointRepository,
	log logger.Logger,
) interfaces.SyncEngine {
	return &Engine{
		cfg:         cfg,
		factory:     factory,
		sink:        sink,
		checkpoints: checkpoints,
		log:         log,
		supervisors: make(map[string]*Supervisor),
	}
}

// Start prepares the engine for AddAccount calls. The parent context bounds
// the lifetime of every supervisor.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx != nil {
		return errors.New("engine already started")
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.log.Info("Sync engine started")
	return nil
}

// Stop cancels every supervisor and waits for them to wind down.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return errors.New("engine not started")
	}
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.log.Info("Sync engine stopped")
		return nil
	case <-time.After(stopGracePeriod):
		e.log.Warn("Timed out waiting for account supervisors to stop")
		return errors.New("timed out waiting for account supervisors")
	}
}

// AddAccount registers an account and starts its supervisor. A setup failure
// does not fail this call; it surfaces in Status for this account only.
func (e *Engine) AddAccount(ctx context.Context, account *models.Account) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "Engine.AddAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	if err := config.ValidateAccount(account); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return errors.New("engine not started")
	}
	if _, exists := e.supervisors[account.ID]; exists {
		return mailerrors.ErrAccountExists
	}

	supervisor := newSupervisor(account, e.cfg, e.factory, e.sink, e.checkpoints, e.log)
	e.supervisors[account.ID] = supervisor

	engineCtx := e.ctx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		supervisor.run(engineCtx)
	}()

	e.log.Infof("[%s] Account registered (%s)", account.ID, account.DisplayLabel())
	return nil
}

// WaitForSetup blocks until every currently registered account has finished
// its setup phase, successfully or not. Setup failures surface in Status, not
// here; only ctx expiry produces an error.
func (e *Engine) WaitForSetup(ctx context.Context) error {
	e.mu.RLock()
	supervisors := make([]*Supervisor, 0, len(e.supervisors))
	for _, supervisor := range e.supervisors {
		supervisors = append(supervisors, supervisor)
	}
	e.mu.RUnlock()

	for _, supervisor := range supervisors {
		select {
		case <-supervisor.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RemoveAccount stops the account's supervisor and forgets its checkpoints.
func (e *Engine) RemoveAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Engine.RemoveAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	e.mu.Lock()
	supervisor, exists := e.supervisors[accountID]
	if exists {
		delete(e.supervisors, accountID)
	}
	e.mu.Unlock()

	if !exists {
		return mailerrors.ErrAccountNotFound
	}

	supervisor.requestStop()

	select {
	case <-supervisor.done:
	case <-time.After(stopGracePeriod):
		e.log.Warnf("[%s] Timed out waiting for supervisor to stop", accountID)
	}

	if err := e.checkpoints.DeleteAccountCheckpoints(ctx, accountID); err != nil {
		e.log.Warnf("[%s] Could not delete checkpoints: %v", accountID, err)
	}

	e.log.Infof("[%s] Account removed", accountID)
	return nil
}

// Status returns a point-in-time snapshot per account.
func (e *Engine) Status() map[string]interfaces.AccountStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	statuses := make(map[string]interfaces.AccountStatus, len(e.supervisors))
	for id, supervisor := range e.supervisors {
		statuses[id] = supervisor.Status()
	}
	return statuses
}
