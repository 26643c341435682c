package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	rat "github.com/bruce-robotics/bruce-acceptor"
	"github.com/bruce-robotics/bruce-acceptor/exitcodes"
	"github.com/bruce-robotics/bruce-acceptor/flags"
	"github.com/bruce-robotics/bruce-acceptor/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "bruce-acceptor"
	app.Usage = "Robot Platform Acceptance Tester Service"
	app.Description = "bruce-acceptor runs declarative test cases against robot platforms"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if rat.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	rat.SetLogLevel(logLevel(ctx.String(flags.LogLevel.Name)))
	logger := log.New("app", "bruce-acceptor")

	metrics.Debug = ctx.Bool(flags.MetricsDebug.Name)

	cfg, err := rat.NewConfig(ctx, logger)
	if err != nil {
		return rat.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	appCtx, cancel := context.WithCancelCause(ctx.Context)
	defer cancel(nil)

	app, err := rat.New(appCtx, cfg, Version, cancel)
	if err != nil {
		return rat.NewRuntimeError(fmt.Errorf("failed to create app: %w", err))
	}

	if err := app.Start(appCtx); err != nil {
		_ = app.Stop(context.Background())
		return err
	}

	<-appCtx.Done()

	if err := app.Stop(context.Background()); err != nil {
		logger.Error("error during shutdown", "err", err)
	}

	if cause := context.Cause(appCtx); cause != nil &&
		!errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
