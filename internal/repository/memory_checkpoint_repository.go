package repository

import (
	"context"
	"sync"

	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/models"
)

// inMemorySyncCheckpointRepository backs the engine when no database is
// configured. Checkpoints live for the process lifetime only.
type inMemorySyncCheckpointRepository struct {
	mu          sync.RWMutex
	checkpoints map[string]models.SyncCheckpoint
}

func NewInMemorySyncCheckpointRepository() interfaces.SyncCheckpointRepository {
	return &inMemorySyncCheckpointRepository{
		checkpoints: make(map[string]models.SyncCheckpoint),
	}
}

func checkpointKey(accountID, mailbox string) string {
	return accountID + "\x00" + mailbox
}

func (r *inMemorySyncCheckpointRepository) GetCheckpoint(ctx context.Context, accountID, mailbox string) (*models.SyncCheckpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checkpoint, ok := r.checkpoints[checkpointKey(accountID, mailbox)]
	if !ok {
		return nil, nil
	}
	return &checkpoint, nil
}

func (r *inMemorySyncCheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *models.SyncCheckpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkpoints[checkpointKey(checkpoint.AccountID, checkpoint.Mailbox)] = *checkpoint
	return nil
}

func (r *inMemorySyncCheckpointRepository) DeleteAccountCheckpoints(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, checkpoint := range r.checkpoints {
		if checkpoint.AccountID == accountID {
			delete(r.checkpoints, key)
		}
	}
	return nil
}

func (r *inMemorySyncCheckpointRepository) GetAllCheckpoints(ctx context.Context) ([]models.SyncCheckpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.SyncCheckpoint, 0, len(r.checkpoints))
	for _, checkpoint := range r.checkpoints {
		result = append(result, checkpoint)
	}
	return result, nil
}
