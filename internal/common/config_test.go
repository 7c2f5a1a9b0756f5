package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", config.Service.BaseURL)
	assert.Equal(t, 30*time.Second, config.Service.RequestTimeoutDuration())
	assert.Equal(t, 60*time.Second, config.Service.UploadTimeoutDuration())
	assert.Equal(t, 2*time.Second, config.Polling.IntervalDuration())
	assert.Equal(t, int64(100*1024*1024), config.Upload.MaxSizeBytes())
	assert.Equal(t, []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"}, config.Upload.AllowedExtensions)
	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, "@every 30s", config.Health.Schedule)
	assert.Equal(t, "text", config.Report.Format)
	assert.Equal(t, 20, config.Report.PreviewFrames)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[service]
base_url = "http://detector:5000"
rate_limit = 4

[polling]
interval = "5s"
`)
	override := writeConfig(t, "override.toml", `
[polling]
interval = "500ms"

[upload]
max_size_mb = 10
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "http://detector:5000", config.Service.BaseURL)
	assert.Equal(t, 4, config.Service.RateLimit)
	assert.Equal(t, 500*time.Millisecond, config.Polling.IntervalDuration())
	assert.Equal(t, 10, config.Upload.MaxSizeMB)
	// Untouched sections keep their defaults
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadFromFiles_EnvironmentOverridesFiles(t *testing.T) {
	path := writeConfig(t, "deepscan.toml", `
[service]
base_url = "http://from-file:5000"
`)
	t.Setenv("DEEPSCAN_SERVICE_BASE_URL", "http://from-env:5000")
	t.Setenv("DEEPSCAN_UPLOAD_ALLOWED_EXTENSIONS", "mp4, webm")
	t.Setenv("DEEPSCAN_HEALTH_ENABLED", "false")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:5000", config.Service.BaseURL)
	assert.Equal(t, []string{"mp4", "webm"}, config.Upload.AllowedExtensions)
	assert.False(t, config.Health.Enabled)

	ApplyFlagOverrides(config, "http://from-flag:5000", "json")
	assert.Equal(t, "http://from-flag:5000", config.Service.BaseURL)
	assert.Equal(t, "json", config.Report.Format)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"bad toml", "[service\nbase_url = 1", "failed to parse config file"},
		{"bad duration", "[polling]\ninterval = \"soon\"", "polling.interval"},
		{"bad schedule", "[health]\nschedule = \"every day\"", "invalid health schedule"},
		{"zero upload size", "[upload]\nmax_size_mb = 0", "upload.max_size_mb"},
		{"bad format", "[report]\nformat = \"pdf\"", "report.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFiles(writeConfig(t, "deepscan.toml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidateHealthSchedule(t *testing.T) {
	assert.NoError(t, ValidateHealthSchedule("@every 30s"))
	assert.NoError(t, ValidateHealthSchedule("*/5 * * * *"))
	assert.Error(t, ValidateHealthSchedule("* * *"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0 B", FormatFileSize(0))
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "5 MB", FormatFileSize(5*1024*1024))

	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "0:09", FormatDuration(9.9))
	assert.Equal(t, "2:05", FormatDuration(125))
	assert.Equal(t, "0:00", FormatDuration(-3))
}
