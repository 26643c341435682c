package adapter

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/conn"
	"github.com/bruce-robotics/bruce-acceptor/executor"
	"github.com/bruce-robotics/bruce-acceptor/metrics"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

// gazeboBinary is the simulator entrypoint probed at connect time and used
// by StartSim.
const gazeboBinary = "gazebo"

// GazeboAdapter drives the Gazebo simulator through local processes.
type GazeboAdapter struct {
	*core
}

var _ Adapter = (*GazeboAdapter)(nil)

// NewGazebo builds the local-process adapter. With simulation: true the
// configured stand-in backend is wired in instead of real processes.
func NewGazebo(platform string, cfg *types.PlatformConfig, logger log.Logger) *GazeboAdapter {
	c := newCore(platform, cfg, logger)
	if cfg.Simulation {
		c.useSimulation(false)
	} else {
		c.conn = conn.NewLocalManager(cfg.WorkDir, gazeboBinary, c.log)
		c.exec = executor.NewLocal(executor.Options{
			WorkDir:     cfg.WorkDir,
			LongRunning: cfg.LongRunning,
		}, c.log)
	}
	return &GazeboAdapter{core: c}
}

func (a *GazeboAdapter) Name() string            { return a.name }
func (a *GazeboAdapter) Kind() types.BackendKind { return types.BackendGazebo }

// Connect verifies the local environment. The same single explicit
// fallback-to-simulation policy applies as for the robot adapter.
func (a *GazeboAdapter) Connect(ctx context.Context) error {
	if !a.cfg.Enabled {
		return ErrPlatformDisabled
	}

	err := a.conn.Connect(ctx)
	a.recordState()
	if err == nil {
		return nil
	}

	if a.mode == types.ModeReal && a.cfg.FallbackSimulation {
		a.log.Warn("local connect failed, retrying once in simulation mode", "err", err)
		metrics.RecordError("connect")
		a.useSimulation(true)
		err = a.conn.Connect(ctx)
		a.recordState()
		return err
	}

	metrics.RecordError("connect")
	return err
}

func (a *GazeboAdapter) Disconnect() error {
	err := a.conn.Disconnect()
	a.recordState()
	return err
}

func (a *GazeboAdapter) Status(ctx context.Context) types.PlatformStatus {
	return a.baseStatus(ctx)
}

// StartSim launches the simulator in the background and reports the handle
// in the result, so the caller can stop it later.
func (a *GazeboAdapter) StartSim(ctx context.Context) types.CommandResult {
	return a.ExecuteCommand(ctx, gazeboBinary+" --verbose", true)
}
