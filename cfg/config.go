// Package cfg defines the configuration surface of the ptdump command
// line: the flags it accepts, how they bind to viper, and the shape
// the resulting Config takes once decoded.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one ptdump run,
// populated by BindFlags + viper.Unmarshal. A --config-file, if given,
// is a YAML document that viper itself parses (viper.SetConfigType,
// ReadInConfig) before this struct is ever touched; decoding onto it
// afterward goes through these mapstructure tags and DecodeHook, the
// same as every other config source viper layers in.
type Config struct {
	CacheSize uint32 `mapstructure:"cache-size"`

	Logging LoggingConfig `mapstructure:"logging"`

	PrintStats bool `mapstructure:"print-stats"`
}

// BindFlags declares ptdump's configuration flags (cache size, logging,
// print-stats) on flagSet and binds each one to viper under the
// matching key; the input flags (--raw, --elf, --asid-cr3, --read,
// --config-file) are declared in package cmd instead. It is the same
// declare-then-BindPFlag pairing the gcsfuse CLI uses for its own
// generated flag set.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.Uint32P("cache-size", "c", 10, "Maximum number of sections kept mapped at once.")
	if err := viper.BindPFlag("cache-size", flagSet.Lookup("cache-size")); err != nil {
		return err
	}

	flagSet.String("log-format", "json", "Log output format: \"text\" or \"json\".")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.String("log-severity", "INFO", "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.String("log-file", "", "Path to a log file; if empty, logs go to stderr.")
	if err := viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.Bool("print-stats", false, "Print cache hit/miss/prune counters to stdout on exit.")
	return viper.BindPFlag("print-stats", flagSet.Lookup("print-stats"))
}
