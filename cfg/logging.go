package cfg

// ResolvedPath is a filesystem path that has already been cleaned and
// made absolute by the config loader, distinguishing it at the type
// level from a raw, possibly-relative user-supplied string.
type ResolvedPath string

// Severity is a validated, upper-cased log severity name: TRACE, DEBUG,
// INFO, WARNING, ERROR, or OFF. DecodeHook is what actually validates
// and upper-cases it during config load; the zero value is not a valid
// Severity.
type Severity string

// LoggingConfig is the subset of Config (see config.go) the logger
// package consumes: where to write, at what severity, and in what
// wire format.
type LoggingConfig struct {
	FilePath ResolvedPath `mapstructure:"file-path"`
	Format   string       `mapstructure:"format"`
	Severity Severity     `mapstructure:"severity"`
}
