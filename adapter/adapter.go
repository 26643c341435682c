// Package adapter exposes heterogeneous execution backends (a remote robot
// shell, a local simulator) behind one uniform capability set. Concrete
// strategies are selected at construction time from configuration, never via
// runtime type inspection.
package adapter

import (
	"context"
	"errors"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

var (
	// ErrPlatformDisabled marks a connect attempt on a platform that is not
	// enabled in configuration.
	ErrPlatformDisabled = errors.New("platform is not enabled")
	// ErrNotConnected marks a command or test attempted while disconnected.
	// It is surfaced through the structured result, never thrown.
	ErrNotConnected = errors.New("not connected")
	// ErrReconnectFailed marks the single bounded reconnect attempt failing
	// after a silently dropped connection.
	ErrReconnectFailed = errors.New("reconnect failed")
)

// Adapter is the uniform platform contract. Every backend implements the
// same capability set; callers never need backend-specific handling.
//
// Concurrent ExecuteCommand calls on one adapter are not a supported usage:
// commands within an adapter are serialized by the orchestrator's sequential
// iteration, and cross-platform concurrency uses one adapter per platform.
type Adapter interface {
	Platform() string
	Name() string
	Kind() types.BackendKind

	Connect(ctx context.Context) error
	Disconnect() error

	// Status never fails; internal errors surface in the Error field.
	Status(ctx context.Context) types.PlatformStatus

	// ExecuteCommand returns a structured failure (not an error) when the
	// adapter is disconnected or the executor faults.
	ExecuteCommand(ctx context.Context, command string, background bool) types.CommandResult

	// StopBackground force-terminates a background command by handle.
	// Unknown handles return false.
	StopBackground(ctx context.Context, handleID string) bool

	ExecuteTest(ctx context.Context, spec types.TestSpec) types.TestSummary
}
