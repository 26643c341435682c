package executor

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// simPID is the fixed fake process id reported by simulated background
// launches.
const simPID = 9999

// Sim is the configured-simulation executor: every command succeeds with a
// canned result and no real side effects. It backs platforms configured with
// simulation: true and the explicit fallback-after-failed-connect policy.
type Sim struct {
	log     log.Logger
	handles *handleTable
}

func NewSim(logger log.Logger) *Sim {
	if logger == nil {
		logger = log.New()
	}
	return &Sim{
		log:     logger.New("executor", "sim"),
		handles: newHandleTable("sim"),
	}
}

func (e *Sim) Execute(ctx context.Context, command string, timeout time.Duration) types.CommandResult {
	// Mimic real execution latency so orchestration timing stays plausible.
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return types.NewErrorResult(command, ctx.Err())
	}
	e.log.Debug("simulated command", "command", command)
	return types.NewCommandResult(command, 0, "simulated: "+command, "")
}

func (e *Sim) ExecuteBackground(ctx context.Context, command string) (types.BackgroundHandle, error) {
	h := e.handles.add(simPID, command)
	e.log.Debug("simulated background command", "handle", h.ID, "command", command)
	return h, nil
}

func (e *Sim) Stop(ctx context.Context, handleID string) bool {
	if _, ok := e.handles.get(handleID); !ok {
		return false
	}
	e.handles.remove(handleID)
	return true
}

func (e *Sim) IsProcessRunning(ctx context.Context, fragment string) bool {
	return false
}
