// Package orchestrator drives a declarative multi-step test case through a
// command provider, step by step, command by command, stopping at the first
// failure. The fail-fast policy trades completeness for fast, unambiguous
// diagnosis: a run never reports partial success for work it skipped.
package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// CommandRunner is the slice of the platform adapter the orchestrator needs.
// The adapter injects itself when delegating a test run.
type CommandRunner interface {
	Platform() string
	ExecuteCommand(ctx context.Context, command string, background bool) types.CommandResult
}

// Orchestrator sequences test specifications into step/command results.
type Orchestrator struct {
	log log.Logger
}

func New(logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New()
	}
	return &Orchestrator{log: logger.New("role", "orchestrator")}
}

// Run executes the spec's steps in order on the given runner.
//
// The first failing command halts its step; remaining commands in that step
// are skipped and the failure is recorded as the step's error. The first
// failing step halts the whole test; later steps are absent from the
// summary, not marked failed.
func (o *Orchestrator) Run(ctx context.Context, spec types.TestSpec, runner CommandRunner) types.TestSummary {
	start := time.Now()
	summary := types.TestSummary{
		TestID:    spec.ID,
		TestName:  spec.Name,
		Platform:  runner.Platform(),
		Timestamp: start,
	}

	o.log.Info("test started", "test", spec.Name, "platform", summary.Platform, "steps", len(spec.Steps))

	for _, step := range spec.Steps {
		stepResult := o.runStep(ctx, step, runner)
		summary.Steps = append(summary.Steps, stepResult)
		if !stepResult.Success {
			o.log.Warn("step failed, halting test",
				"test", spec.Name, "platform", summary.Platform, "step", step.Name, "err", stepResult.Error)
			break
		}
	}

	summary.Duration = time.Since(start)
	summary.Finalize()
	o.log.Info("test finished",
		"test", spec.Name,
		"platform", summary.Platform,
		"success", summary.Success,
		"steps", summary.TotalSteps,
		"duration", summary.Duration)
	return summary
}

func (o *Orchestrator) runStep(ctx context.Context, step types.TestStep, runner CommandRunner) types.StepResult {
	result := types.StepResult{Name: step.Name, Success: true}

	for _, command := range step.Commands {
		cmdResult := runner.ExecuteCommand(ctx, command, false)
		result.Commands = append(result.Commands, cmdResult)
		if !cmdResult.Success {
			result.Success = false
			result.Error = cmdResult.Error
			if result.Error == "" {
				result.Error = "command exited with code " + strconv.Itoa(cmdResult.ExitCode)
			}
			break
		}
	}
	return result
}
