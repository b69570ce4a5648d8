package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
)

type syncCheckpointRepository struct {
	db *gorm.DB
}

func NewSyncCheckpointRepository(db *gorm.DB) interfaces.SyncCheckpointRepository {
	return &syncCheckpointRepository{db: db}
}

// GetCheckpoint retrieves the checkpoint for a specific account and mailbox
func (r *syncCheckpointRepository) GetCheckpoint(ctx context.Context, accountID, mailbox string) (*models.SyncCheckpoint, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCheckpointRepository.GetCheckpoint")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var checkpoint models.SyncCheckpoint
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND mailbox = ?", accountID, mailbox).
		First(&checkpoint)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil // No checkpoint yet
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get checkpoint: %w", result.Error)
	}

	return &checkpoint, nil
}

// SaveCheckpoint saves the checkpoint for an account mailbox
func (r *syncCheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *models.SyncCheckpoint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCheckpointRepository.SaveCheckpoint")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	// Try to update first
	result := r.db.WithContext(ctx).
		Model(&models.SyncCheckpoint{}).
		Where("account_id = ? AND mailbox = ?", checkpoint.AccountID, checkpoint.Mailbox).
		Updates(map[string]interface{}{
			"last_sync_time": checkpoint.LastSyncTime,
			"last_uid":       checkpoint.LastUID,
			"updated_at":     time.Now(),
		})

	// If no record was updated, create a new one
	if result.RowsAffected == 0 {
		result = r.db.WithContext(ctx).Create(checkpoint)
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save checkpoint: %w", result.Error)
	}

	return nil
}

// DeleteAccountCheckpoints deletes all checkpoints for an account
func (r *syncCheckpointRepository) DeleteAccountCheckpoints(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCheckpointRepository.DeleteAccountCheckpoints")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.SyncCheckpoint{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete account checkpoints: %w", result.Error)
	}

	return nil
}

// GetAllCheckpoints returns every stored checkpoint
func (r *syncCheckpointRepository) GetAllCheckpoints(ctx context.Context) ([]models.SyncCheckpoint, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCheckpointRepository.GetAllCheckpoints")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var checkpoints []models.SyncCheckpoint
	if err := r.db.WithContext(ctx).Find(&checkpoints).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get all checkpoints: %w", err)
	}

	return checkpoints, nil
}
