// Package rat is a Robot Acceptance Tester: it drives identical declarative
// test cases against heterogeneous robot platforms (a physical robot over a
// remote shell, a local simulator) and reconciles the outcomes.
package rat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/registry"
	"github.com/bruce-robotics/bruce-acceptor/runner"
	"github.com/bruce-robotics/bruce-acceptor/service"
	"github.com/bruce-robotics/bruce-acceptor/store"
)

// SetLogLevel configures the process-wide logger.
func SetLogLevel(logLevel slog.Leveler) {
	log.SetDefault(log.NewLogger(slog.NewJSONHandler(
		os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// App wires the registry, result store, cross-platform runner and HTTP
// service together and owns their lifecycle.
type App struct {
	ctx     context.Context
	config  *Config
	version string

	registry *registry.Registry
	store    *store.Store
	runner   *runner.CrossPlatformRunner
	service  *service.Service

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*App, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating app with config",
		"platformConfig", config.PlatformConfig,
		"testConfig", config.TestConfig,
		"dbPath", config.DBPath,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:                config.Log,
		PlatformConfigFile: config.PlatformConfig,
		TestConfigFile:     config.TestConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	st, err := store.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	run := runner.New(reg, st, config.Log)

	a := &App{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		store:            st,
		runner:           run,
		shutdownCallback: shutdownCallback,
	}
	if !config.RunOnce {
		a.service = service.New(service.Config{
			APIHost: config.APIHost,
			APIPort: config.APIPort,
		}, reg, run, st, config.Log)
	}
	return a, nil
}

// Start connects the registered platforms and either runs the configured
// test once or brings up the HTTP service.
func (a *App) Start(ctx context.Context) error {
	a.ctx = ctx
	a.running.Store(true)

	failures := a.registry.ConnectAll(ctx)
	for platform, err := range failures {
		a.config.Log.Warn("platform unavailable at startup", "platform", platform, "err", err)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Starting in run-once mode", "test", a.config.TestName)
		return a.runTest(ctx)
	}

	a.config.Log.Info("Starting in service mode")
	a.service.Start(ctx)
	return nil
}

func (a *App) runTest(ctx context.Context) error {
	spec, ok := a.registry.Test(a.config.TestName)
	if !ok {
		return NewRuntimeError(fmt.Errorf("unknown test: %s", a.config.TestName))
	}

	result, err := a.runner.Run(ctx, spec, a.config.TargetPlatforms)
	if err != nil {
		return NewRuntimeError(err)
	}

	formatter := runner.NewConsoleResultFormatter(nil)
	if err := formatter.FormatResult(result); err != nil {
		a.config.Log.Error("failed to format results", "err", err)
	}

	failed := len(result.Errors)
	for _, summary := range result.Platforms {
		if !summary.Success {
			failed++
		}
	}
	if failed > 0 {
		return NewTestFailureError(fmt.Sprintf("%d platform(s) failed test %q", failed, spec.Name))
	}

	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

// Stop tears the service and platform connections down. Safe to call when
// already stopped.
func (a *App) Stop(ctx context.Context) error {
	if !a.running.Load() {
		a.config.Log.Debug("Already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)

	if a.service != nil {
		a.service.Shutdown()
	}
	a.registry.Shutdown()
	if err := a.store.Close(); err != nil {
		a.config.Log.Warn("error closing result store", "err", err)
	}

	a.config.Log.Info("stopped")
	return nil
}

// Stopped reports whether the app has shut down.
func (a *App) Stopped() bool {
	return !a.running.Load()
}
