package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/conn"
	"github.com/bruce-robotics/bruce-acceptor/executor"
	"github.com/bruce-robotics/bruce-acceptor/metrics"
	"github.com/bruce-robotics/bruce-acceptor/orchestrator"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

var varPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// core is the execution engine shared by the concrete adapters through
// composition. It owns exactly one connection manager and one executor and
// implements the command/test flow against them; backend-specific behavior
// (how to connect, extra status fields) stays in the concrete types.
type core struct {
	platform string
	name     string
	cfg      *types.PlatformConfig
	log      log.Logger

	conn conn.Manager
	exec executor.Executor
	orch *orchestrator.Orchestrator

	mode             string
	degradedFallback bool
}

func newCore(platform string, cfg *types.PlatformConfig, logger log.Logger) *core {
	if logger == nil {
		logger = log.New()
	}
	c := &core{
		platform: platform,
		name:     cfg.Name,
		cfg:      cfg,
		log:      logger.New("platform", platform),
		mode:     types.ModeReal,
	}
	c.orch = orchestrator.New(c.log)
	return c
}

// useSimulation swaps in the simulated conn/executor pair. degraded marks an
// explicit post-failure fallback (policy-driven, single retry), as opposed to
// a platform configured as a simulation stand-in from the start.
func (c *core) useSimulation(degraded bool) {
	c.conn = conn.NewSimManager(c.log)
	c.exec = executor.NewSim(c.log)
	c.mode = types.ModeSimulation
	c.degradedFallback = degraded
}

func (c *core) Platform() string { return c.platform }

func (c *core) connected() bool {
	return c.conn != nil && c.conn.State() == types.ConnectionConnected
}

func (c *core) recordState() {
	if c.conn != nil {
		metrics.RecordConnectionState(c.platform, string(c.conn.State()))
	}
}

// expand substitutes ${var} placeholders from the platform's configured
// variables. Unknown variables are left intact.
func (c *core) expand(command string) string {
	if len(c.cfg.Variables) == 0 {
		return command
	}
	return varPattern.ReplaceAllStringFunc(command, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if val, ok := c.cfg.Variables[name]; ok {
			return val
		}
		return match
	})
}

// ExecuteCommand runs one command through the owned executor.
//
// Disconnected adapters get a structured "not connected" failure. Before a
// foreground command the connection is probed; a silently dropped connection
// triggers exactly one disconnect/reconnect cycle, and a failed reconnect
// surfaces as a "reconnect failed" result. There is no retry loop beyond
// that single bounded cycle.
func (c *core) ExecuteCommand(ctx context.Context, command string, background bool) types.CommandResult {
	command = c.expand(command)

	if !c.connected() {
		c.log.Warn("command rejected, not connected", "command", command)
		return types.NewErrorResult(command, ErrNotConnected)
	}

	if !c.conn.IsAlive(ctx) {
		c.log.Warn("connection dropped, attempting single reconnect", "command", command)
		c.recordState()
		_ = c.conn.Disconnect()
		if err := c.conn.Connect(ctx); err != nil {
			c.recordState()
			metrics.RecordError("reconnect")
			return types.NewErrorResult(command, fmt.Errorf("%w: %v", ErrReconnectFailed, err))
		}
		c.log.Info("reconnected")
		c.recordState()
	}

	if background {
		handle, err := c.exec.ExecuteBackground(ctx, command)
		if err != nil {
			metrics.RecordCommand(c.platform, false, 0)
			return types.NewErrorResult(command, err)
		}
		result := types.NewCommandResult(command, 0, "started in background, pid "+strconv.Itoa(handle.PID), "")
		result.HandleID = handle.ID
		metrics.RecordCommand(c.platform, true, 0)
		return result
	}

	start := time.Now()
	result := c.exec.Execute(ctx, command, 0)
	metrics.RecordCommand(c.platform, result.Success, time.Since(start))
	return result
}

// StopBackground delegates to the executor's handle table.
func (c *core) StopBackground(ctx context.Context, handleID string) bool {
	if c.exec == nil {
		return false
	}
	return c.exec.Stop(ctx, handleID)
}

// ExecuteTest delegates to the orchestrator, injecting this adapter as the
// command provider.
func (c *core) ExecuteTest(ctx context.Context, spec types.TestSpec) types.TestSummary {
	summary := c.orch.Run(ctx, spec, c)
	metrics.RecordTestRun(c.platform, summary.Success, summary.SuccessRate)
	return summary
}

// baseStatus assembles the fields common to every backend. It never fails:
// probe errors are folded into the status instead.
func (c *core) baseStatus(ctx context.Context) types.PlatformStatus {
	status := types.PlatformStatus{
		Platform:         c.platform,
		Name:             c.name,
		Mode:             c.mode,
		DegradedFallback: c.degradedFallback,
	}
	if c.conn == nil {
		status.State = types.ConnectionDisconnected
		return status
	}

	status.State = c.conn.State()
	status.Connected = status.State == types.ConnectionConnected
	status.LastUpdate = c.conn.LastUpdate()

	if status.Connected && len(c.cfg.StatusProcesses) > 0 {
		status.Processes = make(map[string]bool, len(c.cfg.StatusProcesses))
		for _, proc := range c.cfg.StatusProcesses {
			status.Processes[proc] = c.exec.IsProcessRunning(ctx, proc)
		}
	}
	return status
}
