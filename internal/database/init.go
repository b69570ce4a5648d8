package database

import (
	"gorm.io/gorm"

	"github.com/mailfold/mailfold/config"
)

// InitDatabase connects to postgres when one is configured. A nil return with
// nil error means no database is configured and the engine should fall back
// to its in-memory checkpoint store.
func InitDatabase(dbConfig *config.DatabaseConfig) (*gorm.DB, error) {
	if dbConfig == nil || dbConfig.Host == "" {
		return nil, nil
	}

	return NewConnection(dbConfig)
}
