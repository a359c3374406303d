// File: cmd/auth_api/providers.go
package main

import (
	"log"

	"auth_api/internal/config"
	"auth_api/internal/platform/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// provideDatabase opens the database and returns a cleanup that closes it and flushes the logger.
func provideDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		logger.Info("Executing cleanup tasks...")
		database.Close(db, logger)
		if err := logger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}
	return db, cleanup, nil
}
