package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"APP_PORT", "CORS_ALLOWED_ORIGINS", "MONGODB_URI", "MONGODB_DB_NAME", "TIMEZONE",
	"REPORT_CRON_SCHEDULE", "TRACKER_SWEEP_SCHEDULE", "TRACKER_STALE_AFTER", "DIGEST_WEBHOOK_URL",
	"GOOGLE_SHEETS_CREDENTIALS_PATH", "GOOGLE_SHEET_DATABASE_ID", "GOOGLE_SHEET_DIGEST_RANGE",
	"S3_BUCKET", "S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_CLOUDFRONT_DOMAIN", "LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedVars {
		t.Setenv(key, "")
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "bustrack", cfg.MongoDB.DBName)
	assert.Equal(t, "UTC", cfg.Reporting.Timezone)
	assert.Equal(t, "0 20 * * *", cfg.Reporting.CronSchedule)
	assert.Equal(t, "*/5 * * * *", cfg.Trackers.SweepSchedule)
	assert.Equal(t, 10*time.Minute, cfg.Trackers.StaleAfter)
	assert.False(t, cfg.Sheets.Enabled())
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	for _, key := range managedVars {
		// godotenv.Load does not override variables that are already set.
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "APP_PORT=9090\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\nTRACKER_STALE_AFTER=90s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, key := range managedVars {
			_ = os.Unsetenv(key)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Trackers.StaleAfter)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "partial sheets", env: map[string]string{"GOOGLE_SHEET_DATABASE_ID": "sheet"}},
		{name: "bucket without region", env: map[string]string{"S3_BUCKET": "images"}},
		{name: "half credentials", env: map[string]string{"S3_ACCESS_KEY_ID": "key"}},
		{name: "unknown timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "bad duration", env: map[string]string{"TRACKER_STALE_AFTER": "soon"}},
		{name: "negative duration", env: map[string]string{"TRACKER_STALE_AFTER": "-1m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(missingEnvFile(t))
			assert.Error(t, err)
		})
	}
}
