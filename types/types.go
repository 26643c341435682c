package types

import (
	"time"
)

// ConnectionState represents the lifecycle state of a platform connection
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDegraded     ConnectionState = "degraded"
)

// BackendKind identifies the execution substrate behind an adapter
type BackendKind string

const (
	BackendRobot  BackendKind = "robot"  // remote shell session
	BackendGazebo BackendKind = "gazebo" // local process runner
)

// PlatformMode distinguishes a real backend from the configured stand-in
const (
	ModeReal       = "real"
	ModeSimulation = "simulation"
)

// ExitCodeExecError is the reserved exit code for "command did not run"
// (executor/transport error). It is distinct from any real process exit code.
const ExitCodeExecError = -1

// CommandResult captures the outcome of a single command execution.
// Invariant: Success is true iff ExitCode == 0.
type CommandResult struct {
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	Error     string    `json:"error,omitempty"`
	HandleID  string    `json:"handle_id,omitempty"` // set for background launches
	Timestamp time.Time `json:"timestamp"`
}

// NewCommandResult builds a result from a completed process, enforcing the
// success/exit-code invariant.
func NewCommandResult(command string, exitCode int, stdout, stderr string) CommandResult {
	return CommandResult{
		Command:   command,
		Success:   exitCode == 0,
		ExitCode:  exitCode,
		Stdout:    stdout,
		Stderr:    stderr,
		Timestamp: time.Now(),
	}
}

// NewErrorResult builds a "did not run" result carrying the executor error.
func NewErrorResult(command string, err error) CommandResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return CommandResult{
		Command:   command,
		Success:   false,
		ExitCode:  ExitCodeExecError,
		Error:     msg,
		Timestamp: time.Now(),
	}
}

// BackgroundHandle is an opaque reference to a detached background command.
// It stays valid until explicitly stopped or the owning connection is torn down.
type BackgroundHandle struct {
	ID       string    `json:"id"`
	PID      int       `json:"pid"`
	Command  string    `json:"command"`
	IssuedAt time.Time `json:"issued_at"`
}

// TestStep is one named step of a test case: an ordered command sequence.
type TestStep struct {
	Name     string   `yaml:"name" json:"name"`
	Commands []string `yaml:"commands" json:"commands"`
}

// TestSpec is a declarative test case. Immutable once loaded.
type TestSpec struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []TestStep `yaml:"steps" json:"steps"`
}

// StepResult records the outcome of one attempted step.
type StepResult struct {
	Name     string          `json:"name"`
	Success  bool            `json:"success"`
	Commands []CommandResult `json:"commands"`
	Error    string          `json:"error,omitempty"`
}

// TestSummary aggregates the step results of one test run on one platform.
// Steps that were never attempted (after a failure) are absent, not failed.
type TestSummary struct {
	TestID          string        `json:"test_id"`
	TestName        string        `json:"test_name"`
	Platform        string        `json:"platform"`
	Success         bool          `json:"success"`
	Steps           []StepResult  `json:"steps"`
	TotalSteps      int           `json:"total_steps"`
	SuccessfulSteps int           `json:"successful_steps"`
	SuccessRate     float64       `json:"success_rate"`
	Duration        time.Duration `json:"duration"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Finalize computes the aggregate fields from the attempted steps.
// Overall success is the logical AND of every attempted step's success,
// which holds vacuously for a summary with no steps.
func (s *TestSummary) Finalize() {
	s.TotalSteps = len(s.Steps)
	s.SuccessfulSteps = 0
	for _, step := range s.Steps {
		if step.Success {
			s.SuccessfulSteps++
		}
	}
	s.Success = s.SuccessfulSteps == s.TotalSteps
	if s.TotalSteps > 0 {
		s.SuccessRate = float64(s.SuccessfulSteps) / float64(s.TotalSteps)
	} else {
		s.SuccessRate = 1
	}
}

// PlatformStatus is the answer to a status query. Status queries never fail;
// internal errors are reported through the Error field instead.
type PlatformStatus struct {
	Platform         string          `json:"platform"`
	Name             string          `json:"name"`
	Connected        bool            `json:"connected"`
	State            ConnectionState `json:"state"`
	Mode             string          `json:"mode"`
	DegradedFallback bool            `json:"degraded_fallback,omitempty"`
	LastUpdate       time.Time       `json:"last_update"`
	Processes        map[string]bool `json:"processes,omitempty"`
	Uptime           string          `json:"uptime,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Comparison holds simple deltas between two platforms' summaries for the
// same test specification.
type Comparison struct {
	PlatformA     string    `json:"platform_a"`
	PlatformB     string    `json:"platform_b"`
	TestName      string    `json:"test_name"`
	SuccessA      bool      `json:"success_a"`
	SuccessB      bool      `json:"success_b"`
	SuccessParity bool      `json:"success_parity"`
	StepsA        int       `json:"steps_a"`
	StepsB        int       `json:"steps_b"`
	StepDelta     int       `json:"step_delta"`
	Timestamp     time.Time `json:"timestamp"`
}
