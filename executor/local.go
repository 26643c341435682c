package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// Local runs commands as local processes under the configured working
// directory. Used by the simulator backend.
type Local struct {
	opts    Options
	log     log.Logger
	handles *handleTable
}

// NewLocal creates a local-process executor.
func NewLocal(opts Options, logger log.Logger) *Local {
	if logger == nil {
		logger = log.New()
	}
	return &Local{
		opts:    opts.withDefaults(),
		log:     logger.New("executor", "local"),
		handles: newHandleTable("local"),
	}
}

// Execute runs the command to completion or until the timeout expires. On
// timeout the process group is terminated, SIGTERM first and SIGKILL after
// the grace period, so nothing is ever left running unbounded.
func (e *Local) Execute(ctx context.Context, command string, timeout time.Duration) types.CommandResult {
	timeout = e.opts.timeoutFor(command, timeout)
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "bash", "-c", command)
	cmd.Dir = e.opts.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Terminate the whole process group, not just the shell.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = GracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("executing command", "command", command, "timeout", timeout)
	runErr := cmd.Run()
	outText := cleanOutput(stdout.String())
	errText := cleanOutput(stderr.String())

	if cmdCtx.Err() == context.DeadlineExceeded {
		if e.opts.isLongRunning(command) {
			e.log.Warn("long-running init command timed out; treating as tentative success",
				"command", command, "timeout", timeout)
			return lenientTimeoutResult(command, outText, errText, timeout)
		}
		e.log.Error("command timed out", "command", command, "timeout", timeout)
		return timeoutResult(command, outText, errText, timeout)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The command never ran (bad workdir, missing shell, ...).
			return types.NewErrorResult(command, runErr)
		}
	}

	result := types.NewCommandResult(command, exitCode, outText, errText)
	e.log.Debug("command finished", "command", command, "exit_code", exitCode)
	return result
}

// ExecuteBackground detaches the command via a no-hang-up wrapper and
// returns immediately with an opaque handle for later Stop.
func (e *Local) ExecuteBackground(ctx context.Context, command string) (types.BackgroundHandle, error) {
	wrapped := "nohup " + command + " >/dev/null 2>&1 & echo $!"
	result := e.Execute(ctx, wrapped, DefaultTimeout)
	if !result.Success {
		return types.BackgroundHandle{}, errors.New("background launch failed: " + result.Error)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(result.Stdout))
	if err != nil || pid <= 0 {
		return types.BackgroundHandle{}, ErrHandleAcquisition
	}

	h := e.handles.add(pid, command)
	e.log.Info("background command started", "handle", h.ID, "pid", pid, "command", command)
	return h, nil
}

// Stop force-terminates a background command. Unknown handles are a no-op.
func (e *Local) Stop(ctx context.Context, handleID string) bool {
	h, ok := e.handles.get(handleID)
	if !ok {
		return false
	}
	if err := syscall.Kill(h.PID, syscall.SIGKILL); err != nil {
		e.log.Warn("failed to kill background process", "handle", handleID, "pid", h.PID, "err", err)
		return false
	}
	e.handles.remove(handleID)
	e.log.Info("background command stopped", "handle", handleID, "pid", h.PID)
	return true
}

// IsProcessRunning reports whether any local process matches the fragment.
func (e *Local) IsProcessRunning(ctx context.Context, fragment string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, GracePeriod)
	defer cancel()
	return exec.CommandContext(probeCtx, "pgrep", "-f", fragment).Run() == nil
}
