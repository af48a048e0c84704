package cfg

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gotrace/ptimage/internal/config"
	"github.com/mitchellh/mapstructure"
)

// DecodeHook composes the custom decoders viper needs to turn plain
// strings from flags, env vars, or a YAML config file into this
// package's typed fields, the same mapstructure.ComposeDecodeHookFunc
// pattern gcsfuse's own cfg/decode_hook.go uses for its octal- and
// URL-shaped flags.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)

		switch to {
		case reflect.TypeOf(ResolvedPath("")):
			return ResolveFilePath(s)
		case reflect.TypeOf(Severity("")):
			return parseSeverity(s)
		default:
			return data, nil
		}
	}
}

func parseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(s))
	switch sev {
	case Severity(config.TRACE), Severity(config.DEBUG), Severity(config.INFO),
		Severity(config.WARNING), Severity(config.ERROR), Severity(config.OFF):
		return sev, nil
	default:
		return "", fmt.Errorf("invalid log severity: %s", s)
	}
}
