package models

import (
	"time"
)

// SyncCheckpoint records the last watermark persisted for an account. Written
// best-effort after successful fetches; the in-memory watermark stays
// authoritative for the running process.
type SyncCheckpoint struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID    string    `gorm:"column:account_id;type:varchar(50);index;not null"`
	Mailbox      string    `gorm:"column:mailbox;type:varchar(255);index;not null"`
	LastSyncTime time.Time `gorm:"column:last_sync_time;type:timestamp;not null"`
	LastUID      uint32    `gorm:"column:last_uid;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (SyncCheckpoint) TableName() string {
	return "sync_checkpoints"
}
