package config

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bellapacxx/bingo-engine/models"
	"github.com/bellapacxx/bingo-engine/utils/logger"
)

var DB *gorm.DB

// SetupDatabase connects to Postgres and migrates the identity store. Game
// state itself is never persisted; the database only backs registration.
func SetupDatabase(cfg Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatalf("[DB] failed to connect: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		logger.Fatalf("[DB] migration failed: %v", err)
	}

	DB = db
	logger.Infof("[DB] connected and migrated")
	return db
}
