package db

import (
	"testing"

	"github.com/rs/zerolog"

	"complaint-analytics-service/internal/config"
)

func TestNewOpensInMemoryStore(t *testing.T) {
	cfg := &config.Config{Environment: "test"}

	database, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !database.Migrator().HasTable("datasets") || !database.Migrator().HasTable("complaint_events") {
		t.Fatalf("expected dataset tables to exist")
	}
	if err := runMigrations(database); err != nil {
		t.Fatalf("migrations must be re-runnable: %v", err)
	}
}
