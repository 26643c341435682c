package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "BRUCE_ACCEPTOR"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	PlatformConfig = &cli.StringFlag{
		Name:     "platforms",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("PLATFORMS"),
		Usage:    "Path to platform config file (eg. 'platforms.yaml')",
	}
	TestConfig = &cli.StringFlag{
		Name:    "tests",
		Value:   "",
		EnvVars: prefixEnvVars("TESTS"),
		Usage:   "Path to test definition file (eg. 'tests.yaml')",
	}
	DBPath = &cli.StringFlag{
		Name:    "db-path",
		Value:   "bruce-acceptor.db",
		EnvVars: prefixEnvVars("DB_PATH"),
		Usage:   "Path to the sqlite result database (':memory:' for ephemeral)",
	}
	TestName = &cli.StringFlag{
		Name:    "test",
		Value:   "",
		EnvVars: prefixEnvVars("TEST"),
		Usage:   "Run a single named test across platforms and exit",
	}
	TargetPlatforms = &cli.StringSliceFlag{
		Name:    "target-platforms",
		EnvVars: prefixEnvVars("TARGET_PLATFORMS"),
		Usage:   "Restrict test runs to these platforms (default: all enabled)",
	}
	APIHost = &cli.StringFlag{
		Name:    "api-host",
		Value:   "0.0.0.0",
		EnvVars: prefixEnvVars("API_HOST"),
		Usage:   "Listen host for the HTTP API",
	}
	APIPort = &cli.StringFlag{
		Name:    "api-port",
		Value:   "8000",
		EnvVars: prefixEnvVars("API_PORT"),
		Usage:   "Listen port for the HTTP API",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level (debug, info, warn, error)",
	}
	MetricsDebug = &cli.BoolFlag{
		Name:    "metrics-debug",
		Value:   false,
		EnvVars: prefixEnvVars("METRICS_DEBUG"),
		Usage:   "Log every metric record",
	}
)

var requiredFlags = []cli.Flag{
	PlatformConfig,
}

var optionalFlags = []cli.Flag{
	TestConfig,
	DBPath,
	TestName,
	TargetPlatforms,
	APIHost,
	APIPort,
	LogLevel,
	MetricsDebug,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
