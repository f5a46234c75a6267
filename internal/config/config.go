package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Reporting ReportingConfig
	Trackers  TrackerConfig
	Digest    DigestConfig
	Sheets    SheetsConfig
	S3        S3Config
	Log       LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// ReportingConfig holds scheduler and calendar settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// TrackerConfig controls the stale tracker sweep.
type TrackerConfig struct {
	SweepSchedule string
	StaleAfter    time.Duration
}

// DigestConfig points the daily digest at an HTTP webhook.
type DigestConfig struct {
	WebhookURL string
}

// SheetsConfig contains configuration required to append digest rows to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	DigestRange     string
}

// Enabled reports whether the digest sheet is configured.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != "" && s.DigestRange != ""
}

// S3Config holds the object storage bucket for uploaded images.
type S3Config struct {
	Bucket           string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	CloudFrontDomain string
}

// Enabled reports whether a bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	staleAfter, err := time.ParseDuration(getenvWithDefault("TRACKER_STALE_AFTER", "10m"))
	if err != nil {
		return nil, fmt.Errorf("TRACKER_STALE_AFTER: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getenvWithDefault("APP_PORT", "8080"),
			CORSAllowedOrigins: splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "*")),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "bustrack"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
		},
		Trackers: TrackerConfig{
			SweepSchedule: getenvWithDefault("TRACKER_SWEEP_SCHEDULE", "*/5 * * * *"),
			StaleAfter:    staleAfter,
		},
		Digest: DigestConfig{
			WebhookURL: os.Getenv("DIGEST_WEBHOOK_URL"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			DigestRange:     os.Getenv("GOOGLE_SHEET_DIGEST_RANGE"),
		},
		S3: S3Config{
			Bucket:           os.Getenv("S3_BUCKET"),
			Region:           os.Getenv("S3_REGION"),
			AccessKeyID:      os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),
			CloudFrontDomain: os.Getenv("S3_CLOUDFRONT_DOMAIN"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Trackers.SweepSchedule == "" {
		return errors.New("TRACKER_SWEEP_SCHEDULE must be provided")
	}
	if c.Trackers.StaleAfter <= 0 {
		return errors.New("TRACKER_STALE_AFTER must be a positive duration")
	}

	sheetVars := 0
	for _, v := range []string{c.Sheets.CredentialsPath, c.Sheets.SpreadsheetID, c.Sheets.DigestRange} {
		if v != "" {
			sheetVars++
		}
	}
	if sheetVars != 0 && sheetVars != 3 {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH, GOOGLE_SHEET_DATABASE_ID and GOOGLE_SHEET_DIGEST_RANGE must be provided together")
	}

	if c.S3.Enabled() && c.S3.Region == "" {
		return errors.New("S3_REGION must be provided when S3_BUCKET is set")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be provided together")
	}

	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}

	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Reporting.Timezone == "" {
		return nil, errors.New("TIMEZONE must be provided")
	}
	loc, err := time.LoadLocation(c.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Reporting.Timezone, err)
	}
	return loc, nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
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
