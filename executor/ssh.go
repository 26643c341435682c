package executor

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/crypto/ssh"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// ClientProvider resolves the current ssh client. Going through a provider
// instead of holding the client directly means a reconnect by the connection
// manager is picked up on the next command.
type ClientProvider func() *ssh.Client

// SSH runs commands over a remote shell session, one session per command.
type SSH struct {
	client  ClientProvider
	opts    Options
	log     log.Logger
	handles *handleTable
}

// NewSSH creates a remote-session executor.
func NewSSH(client ClientProvider, opts Options, logger log.Logger) *SSH {
	if logger == nil {
		logger = log.New()
	}
	return &SSH{
		client:  client,
		opts:    opts.withDefaults(),
		log:     logger.New("executor", "ssh"),
		handles: newHandleTable("ssh"),
	}
}

// Execute runs the command on a fresh session under the connection's working
// directory and waits up to the timeout. On expiry the remote process is
// signalled to terminate and the session channel is closed after the grace
// period; the session is never left open unbounded.
func (e *SSH) Execute(ctx context.Context, command string, timeout time.Duration) types.CommandResult {
	client := e.client()
	if client == nil {
		return types.NewErrorResult(command, ErrNoSession)
	}

	timeout = e.opts.timeoutFor(command, timeout)

	session, err := client.NewSession()
	if err != nil {
		return types.NewErrorResult(command, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	full := command
	if e.opts.WorkDir != "" {
		full = "cd " + e.opts.WorkDir + " && " + command
	}

	e.log.Debug("executing remote command", "command", command, "timeout", timeout)
	if err := session.Start(full); err != nil {
		return types.NewErrorResult(command, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-time.After(timeout):
		timedOut = true
		// Graceful terminate first, then force the channel closed.
		_ = session.Signal(ssh.SIGTERM)
		select {
		case <-done:
		case <-time.After(GracePeriod):
			_ = session.Close()
			<-done
		}
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return types.NewErrorResult(command, ctx.Err())
	}

	outText := cleanOutput(stdout.String())
	errText := cleanOutput(stderr.String())

	if timedOut {
		if e.opts.isLongRunning(command) {
			e.log.Warn("long-running init command timed out; treating as tentative success",
				"command", command, "timeout", timeout)
			return lenientTimeoutResult(command, outText, errText, timeout)
		}
		e.log.Error("remote command timed out", "command", command, "timeout", timeout)
		return timeoutResult(command, outText, errText, timeout)
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitStatus()
		} else {
			// Transport fault; the command outcome is unknown.
			return types.NewErrorResult(command, waitErr)
		}
	}

	result := types.NewCommandResult(command, exitCode, outText, errText)
	e.log.Debug("remote command finished", "command", command, "exit_code", exitCode)
	return result
}

// ExecuteBackground detaches the command on the remote host via nohup and
// records the remote PID under an opaque handle.
func (e *SSH) ExecuteBackground(ctx context.Context, command string) (types.BackgroundHandle, error) {
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
	e.log.Info("remote background command started", "handle", h.ID, "pid", pid, "command", command)
	return h, nil
}

// Stop kills a remote background command by handle. Unknown handles are a
// no-op.
func (e *SSH) Stop(ctx context.Context, handleID string) bool {
	h, ok := e.handles.get(handleID)
	if !ok {
		return false
	}
	result := e.Execute(ctx, "kill -9 "+strconv.Itoa(h.PID), DefaultTimeout)
	if !result.Success {
		e.log.Warn("failed to kill remote process", "handle", handleID, "pid", h.PID, "err", result.Error)
		return false
	}
	e.handles.remove(handleID)
	e.log.Info("remote background command stopped", "handle", handleID, "pid", h.PID)
	return true
}

// IsProcessRunning reports whether any remote process matches the fragment.
func (e *SSH) IsProcessRunning(ctx context.Context, fragment string) bool {
	result := e.Execute(ctx, "pgrep -f "+strconv.Quote(fragment), GracePeriod)
	return result.Success
}
