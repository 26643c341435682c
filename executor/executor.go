// Package executor runs single commands against one backend, either to
// completion in the foreground or detached in the background. All transport
// and process faults are converted into the normalized CommandResult shape at
// this boundary; they never escape as raw errors.
package executor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

const (
	// DefaultTimeout bounds an ordinary foreground command.
	DefaultTimeout = 30 * time.Second
	// LongRunningTimeout bounds designated long-running initialization
	// commands (robot init scripts legitimately take minutes).
	LongRunningTimeout = 300 * time.Second
	// GracePeriod is how long a timed-out process gets between the graceful
	// terminate and the kill.
	GracePeriod = 5 * time.Second
)

// DefaultLongRunning lists command fragments treated as long-running
// initialization scripts by default.
var DefaultLongRunning = []string{"./init.sh"}

// ErrHandleAcquisition marks a background launch that could not yield a
// trackable process identifier. Distinct from the command itself failing.
var ErrHandleAcquisition = errors.New("handle acquisition failed: no process id")

// ErrNoSession marks an executor whose underlying connection is gone.
var ErrNoSession = errors.New("no active session")

// Executor runs commands for exactly one owned connection.
//
// Execute waits for completion up to the timeout (zero selects the default,
// or the long-running bound for designated init commands). ExecuteBackground
// detaches the command and returns an opaque handle. Stop force-terminates a
// background command by handle; unknown handles return false, never an error.
// IsProcessRunning is a status-query helper and is never required for
// command execution itself.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) types.CommandResult
	ExecuteBackground(ctx context.Context, command string) (types.BackgroundHandle, error)
	Stop(ctx context.Context, handleID string) bool
	IsProcessRunning(ctx context.Context, fragment string) bool
}

// Options tunes an executor. Zero values select the package defaults.
type Options struct {
	WorkDir            string
	LongRunning        []string
	DefaultTimeout     time.Duration
	LongRunningTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultTimeout == 0 {
		o.DefaultTimeout = DefaultTimeout
	}
	if o.LongRunningTimeout == 0 {
		o.LongRunningTimeout = LongRunningTimeout
	}
	if o.LongRunning == nil {
		o.LongRunning = DefaultLongRunning
	}
	return o
}

// isLongRunning reports whether the command matches a designated
// long-running initialization fragment.
func (o Options) isLongRunning(command string) bool {
	for _, frag := range o.LongRunning {
		if frag != "" && strings.Contains(command, frag) {
			return true
		}
	}
	return false
}

// timeoutFor resolves the effective bound for a command.
func (o Options) timeoutFor(command string, requested time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if o.isLongRunning(command) {
		return o.LongRunningTimeout
	}
	return o.DefaultTimeout
}

// cleanOutput normalizes captured process output: ANSI escapes stripped,
// surrounding whitespace trimmed.
func cleanOutput(s string) string {
	return strings.TrimSpace(stripansi.Strip(s))
}

// lenientTimeoutResult is the deliberate leniency for long-running init
// scripts: the remote operation may legitimately still be completing, so a
// timeout is reported as a tentative success rather than silent data loss.
func lenientTimeoutResult(command, stdout, stderr string, timeout time.Duration) types.CommandResult {
	r := types.NewCommandResult(command, 0, stdout, stderr)
	r.Error = "init script still running after " + timeout.String() + "; treating as tentative success"
	return r
}

func timeoutResult(command, stdout, stderr string, timeout time.Duration) types.CommandResult {
	r := types.NewErrorResult(command, errors.New("command timed out after "+timeout.String()))
	r.Stdout = stdout
	r.Stderr = stderr
	return r
}

// handleTable tracks background handles for one executor. Handles stay valid
// until stopped or the owning connection is torn down.
type handleTable struct {
	mu      sync.Mutex
	prefix  string
	counter int
	active  map[string]types.BackgroundHandle
}

func newHandleTable(prefix string) *handleTable {
	return &handleTable{prefix: prefix, active: make(map[string]types.BackgroundHandle)}
}

func (t *handleTable) add(pid int, command string) types.BackgroundHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter++
	h := types.BackgroundHandle{
		ID:       t.prefix + "-" + strconv.Itoa(t.counter),
		PID:      pid,
		Command:  command,
		IssuedAt: time.Now(),
	}
	t.active[h.ID] = h
	return h
}

func (t *handleTable) get(id string) (types.BackgroundHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.active[id]
	return h, ok
}

func (t *handleTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
}
