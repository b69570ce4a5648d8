package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/repository"
)

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		LookbackWindow:       720 * time.Hour,
		PollInterval:         time.Hour, // keep the fallback timer out of the way
		FetchTimeout:         time.Minute,
		ConnectTimeout:       time.Minute,
		ReconnectMaxAttempts: 1,
		ReconnectMaxBackoff:  time.Second,
	}
}

func testAccount() *models.Account {
	return &models.Account{
		ID:       "acct_test",
		Label:    "test",
		Server:   "imap.example.com",
		Port:     993,
		TLS:      true,
		Username: "user@example.com",
		Password: "secret",
		Mailbox:  "INBOX",
	}
}

func newTestSupervisor(t0 time.Time, session *fakeSession, sink *collectSink) *Supervisor {
	factory := func(account *models.Account) interfaces.AccountSession { return session }
	supervisor := newSupervisor(
		testAccount(),
		testEngineConfig(),
		factory,
		sink,
		repository.NewInMemorySyncCheckpointRepository(),
		newTestLogger(),
	)
	supervisor.session = session
	supervisor.tracker = NewTracker(t0)
	return supervisor
}

func envelopeAt(uid uint32, arrival time.Time) models.MessageEnvelope {
	return models.MessageEnvelope{
		AccountID: "acct_test",
		UID:       uid,
		ArrivalAt: arrival,
		Subject:   "hello",
	}
}

func TestSupervisor_EmptyFetchAdvancesWatermarkToNow(t *testing.T) {
	// Arrange
	t0 := time.Now().UTC().Add(-24 * time.Hour)
	session := newFakeSession()
	require.NoError(t, session.Connect(context.Background()))
	sink := &collectSink{}
	supervisor := newTestSupervisor(t0, session, sink)

	// Act
	before := time.Now().UTC()
	supervisor.attemptSync(context.Background())

	// Assert
	watermark := supervisor.tracker.LastSyncTime()
	assert.True(t, watermark.After(t0), "empty fetch still advances the watermark")
	assert.False(t, watermark.Before(before.Truncate(time.Second)))
	assert.Empty(t, sink.delivered())
}

func TestSupervisor_WatermarkAdvancesToMaxArrival(t *testing.T) {
	// Arrange
	t0 := time.Now().UTC().Add(-24 * time.Hour)
	session := newFakeSession()
	require.NoError(t, session.Connect(context.Background()))
	session.queueFetch([]models.MessageEnvelope{
		envelopeAt(1, t0.Add(1*time.Second)),
		envelopeAt(2, t0.Add(5*time.Second)),
		envelopeAt(3, t0.Add(3*time.Second)),
	}, nil)
	sink := &collectSink{}
	supervisor := newTestSupervisor(t0, session, sink)

	// Act
	supervisor.attemptSync(context.Background())

	// Assert
	assert.Equal(t, t0.Add(5*time.Second), supervisor.tracker.LastSyncTime())
	assert.Len(t, sink.delivered(), 3)
}

func TestSupervisor_FetchErrorLeavesWatermarkUnchanged(t *testing.T) {
	// Arrange
	t0 := time.Now().UTC().Add(-24 * time.Hour)
	session := newFakeSession()
	require.NoError(t, session.Connect(context.Background()))
	session.queueFetch(nil, errors.New("server said no"))
	sink := &collectSink{}
	supervisor := newTestSupervisor(t0, session, sink)

	// Act
	supervisor.attemptSync(context.Background())

	// Assert
	assert.Equal(t, t0, supervisor.tracker.LastSyncTime(), "failed fetch must not move the watermark")
	assert.Empty(t, sink.delivered())
	assert.True(t, supervisor.tracker.TryBegin(), "guard must be released after a failed attempt")
	assert.Contains(t, supervisor.Status().LastError, "server said no")
}

func TestSupervisor_BusyAttemptIsNoOp(t *testing.T) {
	// Arrange
	t0 := time.Now().UTC().Add(-24 * time.Hour)
	session := newFakeSession()
	require.NoError(t, session.Connect(context.Background()))
	sink := &collectSink{}
	supervisor := newTestSupervisor(t0, session, sink)
	require.True(t, supervisor.tracker.TryBegin())

	// Act
	supervisor.attemptSync(context.Background())

	// Assert
	assert.Equal(t, 0, session.calls(), "busy account must not fetch")
	assert.Equal(t, t0, supervisor.tracker.LastSyncTime())
	assert.Empty(t, sink.delivered())
}

func TestSupervisor_SimultaneousTriggersSingleFlight(t *testing.T) {
	// Arrange
	t0 := time.Now().UTC().Add(-24 * time.Hour)
	session := newFakeSession()
	require.NoError(t, session.Connect(context.Background()))
	session.fetchDelay = 100 * time.Millisecond
	sink := &collectSink{}
	supervisor := newTestSupervisor(t0, session, sink)

	// Act: push trigger and timer trigger land at the same moment
	var wg gosync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			supervisor.attemptSync(context.Background())
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 1, session.calls(), "only one fetch may run for one account")
}

func TestSupervisor_UnusableSessionSkipsFetch(t *testing.T) {
	// Arrange
	t0 := time.Now().UTC().Add(-24 * time.Hour)
	session := newFakeSession() // never connected
	sink := &collectSink{}
	supervisor := newTestSupervisor(t0, session, sink)

	// Act
	supervisor.attemptSync(context.Background())

	// Assert
	assert.Equal(t, 0, session.calls())
	assert.Equal(t, t0, supervisor.tracker.LastSyncTime())
}

func TestSupervisor_NotificationsFilteredByMailbox(t *testing.T) {
	// Arrange
	session := newFakeSession()
	sink := &collectSink{}
	factory := func(account *models.Account) interfaces.AccountSession { return session }
	supervisor := newSupervisor(
		testAccount(),
		testEngineConfig(),
		factory,
		sink,
		repository.NewInMemorySyncCheckpointRepository(),
		newTestLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supervisor.run(ctx)

	// The initial catch-up fetch happens during setup.
	require.Eventually(t, func() bool { return session.calls() == 1 }, time.Second, 10*time.Millisecond)

	// Act: a notification for some other mailbox must not trigger a fetch
	session.notifications <- interfaces.MailboxNotification{Mailbox: "Archive", Messages: 9}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, session.calls(), "non-matching mailbox must be ignored")

	// A matching notification does trigger one
	session.notifications <- interfaces.MailboxNotification{Mailbox: "INBOX", Messages: 10}
	require.Eventually(t, func() bool { return session.calls() == 2 }, time.Second, 10*time.Millisecond)

	supervisor.requestStop()
	select {
	case <-supervisor.done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_ResumesFromCheckpoint(t *testing.T) {
	// Arrange
	checkpoints := repository.NewInMemorySyncCheckpointRepository()
	stored := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	require.NoError(t, checkpoints.SaveCheckpoint(context.Background(), &models.SyncCheckpoint{
		AccountID:    "acct_test",
		Mailbox:      "INBOX",
		LastSyncTime: stored,
	}))

	session := newFakeSession()
	sink := &collectSink{}
	factory := func(account *models.Account) interfaces.AccountSession { return session }
	supervisor := newSupervisor(testAccount(), testEngineConfig(), factory, sink, checkpoints, newTestLogger())

	// Act
	watermark := supervisor.initialWatermark(context.Background())

	// Assert
	assert.Equal(t, stored, watermark, "checkpoint inside the lookback window wins")
}
