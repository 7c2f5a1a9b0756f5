package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved service target
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("DeepScan", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("service", config.Service.BaseURL).
		Str("poll_interval", config.Polling.Interval).
		Int("max_upload_mb", config.Upload.MaxSizeMB).
		Msg("DeepScan starting")
}
