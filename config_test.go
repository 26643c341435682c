package rat

import (
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/bruce-robotics/bruce-acceptor/flags"
)

func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Action = func(c *cli.Context) error {
		cfg, cfgErr = NewConfig(c, log.New())
		return nil
	}
	require.NoError(t, app.Run(append([]string{"bruce-acceptor"}, args...)))
	return cfg, cfgErr
}

func TestNewConfig(t *testing.T) {
	t.Run("service mode", func(t *testing.T) {
		cfg, err := parseConfig(t, "--platforms", "platforms.yaml")
		require.NoError(t, err)
		assert.False(t, cfg.RunOnce)
		assert.NotEmpty(t, cfg.PlatformConfig)
		assert.Equal(t, "bruce-acceptor.db", cfg.DBPath)
		assert.Equal(t, "0.0.0.0", cfg.APIHost)
		assert.Equal(t, "8000", cfg.APIPort)
	})

	t.Run("run-once mode", func(t *testing.T) {
		cfg, err := parseConfig(t,
			"--platforms", "platforms.yaml",
			"--tests", "tests.yaml",
			"--test", "walk_test",
			"--target-platforms", "bruce")
		require.NoError(t, err)
		assert.True(t, cfg.RunOnce)
		assert.Equal(t, "walk_test", cfg.TestName)
		assert.Equal(t, []string{"bruce"}, cfg.TargetPlatforms)
	})

	t.Run("named test requires a test file", func(t *testing.T) {
		_, err := parseConfig(t, "--platforms", "platforms.yaml", "--test", "walk_test")
		require.Error(t, err)
	})
}
