package repository

import (
	"gorm.io/gorm"

	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/models"
)

type Repositories struct {
	SyncCheckpointRepository interfaces.SyncCheckpointRepository
}

// InitRepositories wires the checkpoint store. With no database the engine
// keeps checkpoints in memory for the lifetime of the process.
func InitRepositories(db *gorm.DB) *Repositories {
	var checkpoints interfaces.SyncCheckpointRepository
	if db != nil {
		checkpoints = NewSyncCheckpointRepository(db)
	} else {
		checkpoints = NewInMemorySyncCheckpointRepository()
	}

	return &Repositories{
		SyncCheckpointRepository: checkpoints,
	}
}

func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	return db.AutoMigrate(
		&models.SyncCheckpoint{},
	)
}
