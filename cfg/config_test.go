package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsPopulatesViper(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse([]string{"--cache-size=4", "--log-format=text", "--print-stats"}))

	var c Config
	require.NoError(t, viper.Unmarshal(&c))
	assert.Equal(t, uint32(4), c.CacheSize)
	assert.Equal(t, "text", c.Logging.Format)
	assert.True(t, c.PrintStats)
}

func TestResolveFilePathExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := ResolveFilePath("~/logs/ptdump.log")
	require.NoError(t, err)
	assert.Equal(t, ResolvedPath(filepath.Join(home, "logs/ptdump.log")), resolved)
}

func TestResolveFilePathEmptyIsEmpty(t *testing.T) {
	resolved, err := ResolveFilePath("")
	require.NoError(t, err)
	assert.Equal(t, ResolvedPath(""), resolved)
}
