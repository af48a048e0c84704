package cfg

import (
	"path/filepath"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, input map[string]interface{}) Config {
	t.Helper()
	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &c,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(input))
	return c
}

func TestDecodeHookResolvesLogFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := decode(t, map[string]interface{}{
		"logging": map[string]interface{}{"file-path": "~/ptdump.log"},
	})
	assert.Equal(t, ResolvedPath(filepath.Join(home, "ptdump.log")), c.Logging.FilePath)
}

func TestDecodeHookUppercasesAndValidatesSeverity(t *testing.T) {
	c := decode(t, map[string]interface{}{
		"logging": map[string]interface{}{"severity": "debug"},
	})
	assert.Equal(t, Severity("DEBUG"), c.Logging.Severity)
}

func TestDecodeHookRejectsUnknownSeverity(t *testing.T) {
	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &c,
	})
	require.NoError(t, err)

	err = decoder.Decode(map[string]interface{}{
		"logging": map[string]interface{}{"severity": "LOUD"},
	})
	assert.Error(t, err)
}
