package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"complaint-analytics-service/internal/config"
)

const memoryDSN = ":memory:"

// New opens the dataset store. A postgres DSN selects Postgres; anything else
// (including an empty DSN) opens SQLite, in memory by default.
func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DB.DSN)
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")

	var dialector gorm.Dialector
	if isPostgres {
		dialector = postgres.Open(dsn)
	} else {
		if dsn == "" {
			dsn = memoryDSN
		}
		dialector = sqlite.Open(dsn)
	}

	logLevel := gormlogger.Warn
	if cfg.Environment == "development" {
		logLevel = gormlogger.Info
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormWriter{log: log.With().Str("component", "gorm").Logger()}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if isPostgres {
		if cfg.DB.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		}
		if cfg.DB.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		}
		if cfg.DB.ConnMaxLifetime != "" {
			if lifetime, err := time.ParseDuration(cfg.DB.ConnMaxLifetime); err == nil {
				sqlDB.SetConnMaxLifetime(lifetime)
			}
		}
	} else {
		// An in-memory SQLite database lives as long as its one connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}

	driver := "sqlite"
	if isPostgres {
		driver = "postgres"
	}
	log.Info().Str("driver", driver).Msg("dataset store ready")

	return database, nil
}

// gormWriter routes gorm's log lines through zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}
