// Package runner executes one test specification across several platforms at
// once and reconciles the per-platform outcomes into a single run report.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/bruce-robotics/bruce-acceptor/adapter"
	"github.com/bruce-robotics/bruce-acceptor/metrics"
	"github.com/bruce-robotics/bruce-acceptor/store"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

// AdapterSource resolves platform identifiers to adapters. Satisfied by
// *registry.Registry.
type AdapterSource interface {
	Adapter(platform string) (adapter.Adapter, bool)
	Platforms() []string
}

// RunResult is the merged outcome of one cross-platform run.
type RunResult struct {
	RunID       string                       `json:"run_id"`
	TestID      string                       `json:"test_id"`
	TestName    string                       `json:"test_name"`
	Platforms   map[string]types.TestSummary `json:"platforms"`
	Errors      map[string]string            `json:"errors,omitempty"`
	Comparisons []types.Comparison           `json:"comparisons,omitempty"`
	Duration    time.Duration                `json:"duration"`
	Timestamp   time.Time                    `json:"timestamp"`
}

// CrossPlatformRunner fans a test out to platform adapters and gathers the
// summaries. Each platform runs in its own goroutine; a failure or panic on
// one platform never disturbs the others.
type CrossPlatformRunner struct {
	registry AdapterSource
	store    *store.Store
	log      log.Logger
}

func New(reg AdapterSource, st *store.Store, logger log.Logger) *CrossPlatformRunner {
	if logger == nil {
		logger = log.New()
	}
	return &CrossPlatformRunner{
		registry: reg,
		store:    st,
		log:      logger.New("role", "runner"),
	}
}

// Run executes the spec on every requested platform concurrently. An empty
// platforms slice means every registered platform. Platforms that are
// unknown, disconnected, or fault internally get an entry in Errors instead
// of Platforms.
func (r *CrossPlatformRunner) Run(ctx context.Context, spec types.TestSpec, platforms []string) (*RunResult, error) {
	if len(platforms) == 0 {
		platforms = r.registry.Platforms()
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no platforms registered")
	}

	result := &RunResult{
		RunID:     uuid.New().String(),
		TestID:    spec.ID,
		TestName:  spec.Name,
		Platforms: make(map[string]types.TestSummary),
		Errors:    make(map[string]string),
		Timestamp: time.Now(),
	}

	r.log.Info("cross-platform run started",
		"run_id", result.RunID, "test", spec.Name, "platforms", platforms)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, platform := range platforms {
		a, ok := r.registry.Adapter(platform)
		if !ok {
			result.Errors[platform] = "unknown platform"
			continue
		}
		if !a.Status(ctx).Connected {
			r.log.Warn("skipping disconnected platform",
				"run_id", result.RunID, "platform", platform)
			result.Errors[platform] = adapter.ErrNotConnected.Error()
			continue
		}
		wg.Add(1)
		go func(platform string, a adapter.Adapter) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("panic during test run",
						"run_id", result.RunID, "platform", platform, "panic", rec, "stack", string(debug.Stack()))
					metrics.RecordError("runner")
					mu.Lock()
					result.Errors[platform] = fmt.Sprintf("internal error: %v", rec)
					mu.Unlock()
				}
			}()

			summary := a.ExecuteTest(ctx, spec)

			mu.Lock()
			result.Platforms[platform] = summary
			mu.Unlock()
		}(platform, a)
	}
	wg.Wait()

	result.Comparisons = Compare(result.Platforms, spec.Name)
	result.Duration = time.Since(result.Timestamp)

	if r.store != nil {
		for platform, summary := range result.Platforms {
			if err := r.store.Save(result.RunID, summary); err != nil {
				r.log.Error("failed to persist summary",
					"run_id", result.RunID, "platform", platform, "err", err)
				metrics.RecordError("store")
			}
		}
	}

	r.log.Info("cross-platform run finished",
		"run_id", result.RunID,
		"test", spec.Name,
		"ok", len(result.Platforms),
		"failed", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}
