package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/repository"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// stubEngine reports a fixed set of active accounts.
type stubEngine struct {
	accounts map[string]interfaces.AccountStatus
}

func (s *stubEngine) Start(ctx context.Context) error { return nil }
func (s *stubEngine) Stop() error                     { return nil }
func (s *stubEngine) AddAccount(ctx context.Context, account *models.Account) error {
	return nil
}
func (s *stubEngine) RemoveAccount(ctx context.Context, accountID string) error { return nil }
func (s *stubEngine) WaitForSetup(ctx context.Context) error                    { return nil }
func (s *stubEngine) Status() map[string]interfaces.AccountStatus {
	return s.accounts
}

func TestNewCronManager(t *testing.T) {
	// Arrange
	log := getLogger()
	engine := &stubEngine{}
	checkpoints := repository.NewInMemorySyncCheckpointRepository()

	// Act
	cm := NewCronManager(log, engine, checkpoints)

	// Assert
	assert.NotNil(t, cm)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_StartCron(t *testing.T) {
	// Arrange
	cm := NewCronManager(getLogger(), &stubEngine{}, repository.NewInMemorySyncCheckpointRepository())

	// Act
	cm.StartCron()
	defer cm.Stop()

	// Assert
	assert.NotNil(t, cm.cron)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "prune_checkpoints")
}

func TestCronManager_PruneOrphanedCheckpoints(t *testing.T) {
	// Arrange
	checkpoints := repository.NewInMemorySyncCheckpointRepository()
	ctx := context.Background()

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &models.SyncCheckpoint{
		AccountID:    "acct_active",
		Mailbox:      "INBOX",
		LastSyncTime: time.Now().UTC(),
	}))
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &models.SyncCheckpoint{
		AccountID:    "acct_removed",
		Mailbox:      "INBOX",
		LastSyncTime: time.Now().UTC(),
	}))

	engine := &stubEngine{accounts: map[string]interfaces.AccountStatus{
		"acct_active": {Label: "active"},
	}}
	cm := NewCronManager(getLogger(), engine, checkpoints)

	// Act
	cm.pruneOrphanedCheckpoints()

	// Assert
	remaining, err := checkpoints.GetAllCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "acct_active", remaining[0].AccountID)
}
