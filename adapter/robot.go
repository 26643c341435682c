package adapter

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/conn"
	"github.com/bruce-robotics/bruce-acceptor/executor"
	"github.com/bruce-robotics/bruce-acceptor/metrics"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

// RobotAdapter drives the physical robot over a remote shell session.
type RobotAdapter struct {
	*core
}

var _ Adapter = (*RobotAdapter)(nil)

// NewRobot builds the remote-session adapter. With simulation: true the
// configured stand-in backend is wired in instead of a real session.
func NewRobot(platform string, cfg *types.PlatformConfig, logger log.Logger) *RobotAdapter {
	c := newCore(platform, cfg, logger)
	if cfg.Simulation {
		c.useSimulation(false)
	} else {
		sshConn := conn.NewSSHManager(cfg.Connection, c.log)
		c.conn = sshConn
		c.exec = executor.NewSSH(sshConn.Client, executor.Options{
			WorkDir:     cfg.WorkDir,
			LongRunning: cfg.LongRunning,
		}, c.log)
	}
	return &RobotAdapter{core: c}
}

func (a *RobotAdapter) Name() string            { return a.name }
func (a *RobotAdapter) Kind() types.BackendKind { return types.BackendRobot }

// Connect establishes the shell session. A failed real connect is not
// silently papered over: only when the fallback-simulation policy is set does
// the adapter make exactly one more attempt, explicitly in simulation mode.
func (a *RobotAdapter) Connect(ctx context.Context) error {
	if !a.cfg.Enabled {
		return ErrPlatformDisabled
	}

	err := a.conn.Connect(ctx)
	a.recordState()
	if err == nil {
		return nil
	}

	if a.mode == types.ModeReal && a.cfg.FallbackSimulation {
		a.log.Warn("real connect failed, retrying once in simulation mode", "err", err)
		metrics.RecordError("connect")
		a.useSimulation(true)
		err = a.conn.Connect(ctx)
		a.recordState()
		return err
	}

	metrics.RecordError("connect")
	return err
}

func (a *RobotAdapter) Disconnect() error {
	err := a.conn.Disconnect()
	a.recordState()
	return err
}

// Status reports the connection state plus remote host uptime when a real
// session is live.
func (a *RobotAdapter) Status(ctx context.Context) types.PlatformStatus {
	status := a.baseStatus(ctx)
	if status.Connected && a.mode == types.ModeReal {
		if result := a.exec.Execute(ctx, "uptime", conn.ProbeTimeout); result.Success {
			status.Uptime = result.Stdout
		} else {
			status.Error = result.Error
		}
	}
	return status
}
