package db

import (
	"fmt"

	"gorm.io/gorm"

	"complaint-analytics-service/internal/repository"
)

var migrationStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_complaint_events_dataset_date ON complaint_events (dataset_id, event_date);`,
	`CREATE INDEX IF NOT EXISTS idx_complaint_events_dataset_member ON complaint_events (dataset_id, member);`,
	`CREATE INDEX IF NOT EXISTS idx_datasets_expires_at ON datasets (expires_at);`,
}

// Migrate creates the dataset tables and their secondary indexes.
func Migrate(db *gorm.DB) error {
	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
