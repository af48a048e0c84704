// Package config holds the small set of legacy logging knobs the
// logger package accepts alongside the newer cfg.LoggingConfig, kept
// separate so log rotation parameters have a stable, narrow type.
package config

// Severity level names, used both as cfg.LoggingConfig.Severity values
// and as the legacy config knobs logger.SetLoggingLevel accepts.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// LogRotateConfig mirrors lumberjack.Logger's rotation knobs, kept as
// a separate value type so callers can build one without importing
// lumberjack directly.
type LogRotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// DefaultLogRotateConfig rotates at 512 MB, keeps at most 10 backup
// files, and does not compress them.
func DefaultLogRotateConfig() LogRotateConfig {
	return LogRotateConfig{
		MaxFileSizeMB:   512,
		BackupFileCount: 10,
		Compress:        false,
	}
}

// LogConfig is the legacy file-logging config shape InitLogFile
// accepts alongside a cfg.LoggingConfig.
type LogConfig struct {
	LogRotateConfig LogRotateConfig
}
