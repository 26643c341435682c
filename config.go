package rat

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/flags"
)

// Config holds the application configuration
type Config struct {
	PlatformConfig  string
	TestConfig      string
	DBPath          string
	TestName        string   // When set, run this test once and exit
	TargetPlatforms []string // Restrict runs to these platforms (empty = all)
	APIHost         string
	APIPort         string
	RunOnce         bool
	Log             log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	platformConfig := ctx.String(flags.PlatformConfig.Name)
	if platformConfig == "" {
		return nil, errors.New("platform config file is required")
	}
	absPlatformConfig, err := filepath.Abs(platformConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for platform config '%s': %w", platformConfig, err)
	}

	testConfig := ctx.String(flags.TestConfig.Name)
	if testConfig != "" {
		testConfig, err = filepath.Abs(testConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for test config '%s': %w", testConfig, err)
		}
	}

	testName := ctx.String(flags.TestName.Name)
	if testName != "" && testConfig == "" {
		return nil, errors.New("running a named test requires a test definition file")
	}

	return &Config{
		PlatformConfig:  absPlatformConfig,
		TestConfig:      testConfig,
		DBPath:          ctx.String(flags.DBPath.Name),
		TestName:        testName,
		TargetPlatforms: ctx.StringSlice(flags.TargetPlatforms.Name),
		APIHost:         ctx.String(flags.APIHost.Name),
		APIPort:         ctx.String(flags.APIPort.Name),
		RunOnce:         testName != "",
		Log:             logger,
	}, nil
}
