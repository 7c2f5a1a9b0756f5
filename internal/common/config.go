package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Service     ServiceConfig   `toml:"service"`
	Polling     PollingConfig   `toml:"polling"`
	Upload      UploadConfig    `toml:"upload"`
	Server      ServerConfig    `toml:"server"`
	Health      HealthConfig    `toml:"health"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Report      ReportConfig    `toml:"report"`
}

// ServiceConfig points the client at the remote detection service
type ServiceConfig struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout string `toml:"request_timeout"` // e.g., "30s" - status, results and health calls
	UploadTimeout  string `toml:"upload_timeout"`  // e.g., "60s" - video upload
	RateLimit      int    `toml:"rate_limit"`      // Requests per second
}

type PollingConfig struct {
	Interval string `toml:"interval"` // e.g., "2s" - delay between status polls
}

// UploadConfig is the local pre-upload policy
type UploadConfig struct {
	MaxSizeMB         int      `toml:"max_size_mb"`
	AllowedExtensions []string `toml:"allowed_extensions"` // Without the leading dot
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// HealthConfig controls the background liveness probe in serve mode
type HealthConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule, descriptors such as "@every 30s" allowed
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "console", "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// WebSocketConfig contains configuration for the job state stream
type WebSocketConfig struct {
	ProgressThrottle string `toml:"progress_throttle"` // Minimum gap between progress-only broadcasts, e.g. "250ms"
}

// ReportConfig controls CLI report rendering
type ReportConfig struct {
	Format        string `toml:"format"`         // "text", "json", "yaml" or "markdown"
	PreviewFrames int    `toml:"preview_frames"` // Frames shown in the preview table
}

// NewDefaultConfig returns the configuration used when no file overrides a value
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Service: ServiceConfig{
			BaseURL:        "http://localhost:5000",
			RequestTimeout: "30s",
			UploadTimeout:  "60s",
			RateLimit:      10,
		},
		Polling: PollingConfig{
			Interval: "2s",
		},
		Upload: UploadConfig{
			MaxSizeMB:         100,
			AllowedExtensions: []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"},
		},
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Health: HealthConfig{
			Enabled:  true,
			Schedule: "@every 30s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/deepscan",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"console"},
			TimeFormat: "15:04:05",
		},
		WebSocket: WebSocketConfig{
			ProgressThrottle: "250ms",
		},
		Report: ReportConfig{
			Format:        "text",
			PreviewFrames: 20,
		},
	}
}

// LoadFromFile loads configuration from a single optional file
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Later files override earlier files
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// A .env file only fills variables that are not already set
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DEEPSCAN_ENV"); env != "" {
		config.Environment = env
	}

	// Service configuration
	if baseURL := os.Getenv("DEEPSCAN_SERVICE_BASE_URL"); baseURL != "" {
		config.Service.BaseURL = baseURL
	}
	if timeout := os.Getenv("DEEPSCAN_SERVICE_REQUEST_TIMEOUT"); timeout != "" {
		config.Service.RequestTimeout = timeout
	}
	if timeout := os.Getenv("DEEPSCAN_SERVICE_UPLOAD_TIMEOUT"); timeout != "" {
		config.Service.UploadTimeout = timeout
	}
	if rateLimit := os.Getenv("DEEPSCAN_SERVICE_RATE_LIMIT"); rateLimit != "" {
		if r, err := strconv.Atoi(rateLimit); err == nil {
			config.Service.RateLimit = r
		}
	}

	// Polling configuration
	if interval := os.Getenv("DEEPSCAN_POLLING_INTERVAL"); interval != "" {
		config.Polling.Interval = interval
	}

	// Upload configuration
	if maxSize := os.Getenv("DEEPSCAN_UPLOAD_MAX_SIZE_MB"); maxSize != "" {
		if m, err := strconv.Atoi(maxSize); err == nil {
			config.Upload.MaxSizeMB = m
		}
	}
	if extensions := os.Getenv("DEEPSCAN_UPLOAD_ALLOWED_EXTENSIONS"); extensions != "" {
		var exts []string
		for _, ext := range strings.Split(extensions, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				exts = append(exts, ext)
			}
		}
		config.Upload.AllowedExtensions = exts
	}

	// Server configuration
	if port := os.Getenv("DEEPSCAN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DEEPSCAN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Health configuration
	if enabled := os.Getenv("DEEPSCAN_HEALTH_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Health.Enabled = e
		}
	}
	if schedule := os.Getenv("DEEPSCAN_HEALTH_SCHEDULE"); schedule != "" {
		config.Health.Schedule = schedule
	}

	// Storage configuration
	if path := os.Getenv("DEEPSCAN_STORAGE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging configuration
	if level := os.Getenv("DEEPSCAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DEEPSCAN_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}

	// Report configuration
	if format := os.Getenv("DEEPSCAN_REPORT_FORMAT"); format != "" {
		config.Report.Format = format
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, baseURL string, format string) {
	if baseURL != "" {
		config.Service.BaseURL = baseURL
	}
	if format != "" {
		config.Report.Format = format
	}
}

// Validate checks values that cannot be defaulted sensibly
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		return fmt.Errorf("service.base_url is required")
	}
	for name, value := range map[string]string{
		"service.request_timeout":     c.Service.RequestTimeout,
		"service.upload_timeout":      c.Service.UploadTimeout,
		"polling.interval":            c.Polling.Interval,
		"websocket.progress_throttle": c.WebSocket.ProgressThrottle,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("invalid duration for %s: %q", name, value)
		}
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("upload.max_size_mb must be positive, got %d", c.Upload.MaxSizeMB)
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload.allowed_extensions must not be empty")
	}
	switch strings.ToLower(c.Report.Format) {
	case "", "text", "json", "yaml", "yml", "markdown", "md":
	default:
		return fmt.Errorf("unsupported report.format %q (text, json, yaml, markdown)", c.Report.Format)
	}
	if c.Health.Enabled {
		if err := ValidateHealthSchedule(c.Health.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// ValidateHealthSchedule validates a cron expression or descriptor
func ValidateHealthSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid health schedule '%s': %w", schedule, err)
	}
	return nil
}

// RequestTimeoutDuration returns the per-call deadline for non-upload calls
func (s ServiceConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(s.RequestTimeout, 30*time.Second)
}

// UploadTimeoutDuration returns the deadline for the upload call
func (s ServiceConfig) UploadTimeoutDuration() time.Duration {
	return parseDurationOr(s.UploadTimeout, 60*time.Second)
}

// IntervalDuration returns the delay between polls
func (p PollingConfig) IntervalDuration() time.Duration {
	return parseDurationOr(p.Interval, 2*time.Second)
}

// ThrottleDuration returns the progress broadcast throttle, zero disables it
func (w WebSocketConfig) ThrottleDuration() time.Duration {
	return parseDurationOr(w.ProgressThrottle, 0)
}

// MaxSizeBytes returns the upload limit in bytes
func (u UploadConfig) MaxSizeBytes() int64 {
	return int64(u.MaxSizeMB) * 1024 * 1024
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
