package database

import (
	"fmt"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/models"

	"gorm.io/gorm"
)

// Migrate applies the schema. uuid-ossp backs the uuid_generate_v4()
// column defaults.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("database: uuid-ossp extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.FreelancerProfile{},
		&models.EmployerProfile{},
		&models.Job{},
		&models.Proposal{},
		&models.Dialog{},
		&models.DialogParticipant{},
		&models.Message{},
		&models.Notification{},
		&models.Payout{},
	)
	if err != nil {
		return fmt.Errorf("database: automigrate: %w", err)
	}

	logger.Info("database migrated")
	return nil
}
