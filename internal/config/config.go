package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	MaxUploadMB    int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type IngestConfig struct {
	Segment        string
	RefundKeywords []string
}

type ReportConfig struct {
	DefaultBuckets string
	MaxDailyDays   int
}

type DatasetConfig struct {
	TTL           time.Duration
	PurgeInterval time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Ingest      IngestConfig
	Report      ReportConfig
	Dataset     DatasetConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.SetDefault("INGEST_LOB", "bbdaily-b2c")
	v.SetDefault("INGEST_REFUND_KEYWORDS", "credited,refund,refunded,amount")
	v.SetDefault("REPORT_DEFAULT_BUCKETS", "aging")
	v.SetDefault("DATASET_TTL", "24h")
	v.SetDefault("DATASET_PURGE_INTERVAL", "10m")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			MaxUploadMB:    v.GetInt("INGEST_MAX_UPLOAD_MB"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Ingest: IngestConfig{
			Segment:        strings.TrimSpace(v.GetString("INGEST_LOB")),
			RefundKeywords: splitList(v.GetString("INGEST_REFUND_KEYWORDS")),
		},
		Report: ReportConfig{
			DefaultBuckets: v.GetString("REPORT_DEFAULT_BUCKETS"),
			MaxDailyDays:   v.GetInt("REPORT_MAX_DAILY_DAYS"),
		},
		Dataset: DatasetConfig{
			TTL:           v.GetDuration("DATASET_TTL"),
			PurgeInterval: v.GetDuration("DATASET_PURGE_INTERVAL"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 64
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Report.MaxDailyDays <= 0 {
		cfg.Report.MaxDailyDays = 366
	}
	if cfg.Dataset.TTL <= 0 {
		cfg.Dataset.TTL = 24 * time.Hour
	}
	if cfg.Dataset.PurgeInterval <= 0 {
		cfg.Dataset.PurgeInterval = 10 * time.Minute
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.DB.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(cfg.DB.ConnMaxLifetime); err != nil {
			return fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
