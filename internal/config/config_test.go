package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("APP_ENV", "")
	t.Setenv("INGEST_REFUND_KEYWORDS", "refund, wallet ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "development" || cfg.HTTP.Port != 7090 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Ingest.Segment != "bbdaily-b2c" {
		t.Fatalf("unexpected segment %q", cfg.Ingest.Segment)
	}
	if len(cfg.Ingest.RefundKeywords) != 2 || cfg.Ingest.RefundKeywords[1] != "wallet" {
		t.Fatalf("unexpected keywords %v", cfg.Ingest.RefundKeywords)
	}
	if cfg.Dataset.TTL != 24*time.Hour || cfg.Report.MaxDailyDays != 366 {
		t.Fatalf("unexpected dataset/report defaults %+v %+v", cfg.Dataset, cfg.Report)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without JWT_ACCESS_SECRET")
	}
}

func TestLoadRejectsBadLifetime(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("DB_CONN_MAX_LIFETIME", "forever")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad DB_CONN_MAX_LIFETIME")
	}
}
