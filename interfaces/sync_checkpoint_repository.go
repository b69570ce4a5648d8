package interfaces

import (
	"context"

	"github.com/mailfold/mailfold/internal/models"
)

type SyncCheckpointRepository interface {
	GetCheckpoint(ctx context.Context, accountID, mailbox string) (*models.SyncCheckpoint, error)
	SaveCheckpoint(ctx context.Context, checkpoint *models.SyncCheckpoint) error
	DeleteAccountCheckpoints(ctx context.Context, accountID string) error
	GetAllCheckpoints(ctx context.Context) ([]models.SyncCheckpoint, error)
}
