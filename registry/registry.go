// Package registry owns the process-wide set of platform adapters and the
// declarative test cases. It is created at startup, injected into the
// request handlers and the cross-platform runner, and torn down at shutdown;
// nothing accesses adapters as ambient global state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/adapter"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

// Registry manages platform adapters and test specifications.
type Registry struct {
	config Config

	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
	tests    map[string]types.TestSpec
}

// Config contains registry configuration.
type Config struct {
	Log                log.Logger
	PlatformConfigFile string
	TestConfigFile     string
}

// NewRegistry loads both configuration files and constructs one adapter per
// enabled platform, selecting the concrete strategy by its configured kind.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.PlatformConfigFile == "" {
		return nil, fmt.Errorf("platform config file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config:   cfg,
		adapters: make(map[string]adapter.Adapter),
		tests:    make(map[string]types.TestSpec),
	}

	platforms, err := loadPlatformsConfig(cfg.PlatformConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform config: %w", err)
	}
	if err := r.buildAdapters(platforms); err != nil {
		return nil, err
	}

	if cfg.TestConfigFile != "" {
		tests, err := LoadTestSpecs(cfg.TestConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load test config: %w", err)
		}
		r.tests = tests
	}

	cfg.Log.Debug("Registry loaded", "len(adapters)", len(r.adapters), "len(tests)", len(r.tests))
	return r, nil
}

func (r *Registry) buildAdapters(cfg *types.PlatformsConfig) error {
	for id, platform := range cfg.Platforms {
		if !platform.Enabled {
			r.config.Log.Info("platform disabled, skipping", "platform", id)
			continue
		}
		switch platform.Kind {
		case types.BackendRobot:
			r.adapters[id] = adapter.NewRobot(id, platform, r.config.Log)
		case types.BackendGazebo:
			r.adapters[id] = adapter.NewGazebo(id, platform, r.config.Log)
		default:
			return fmt.Errorf("platform [%s] has unknown kind %q", id, platform.Kind)
		}
	}
	return nil
}

// Adapter returns the adapter registered under the platform identifier.
func (r *Registry) Adapter(platform string) (adapter.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[platform]
	return a, ok
}

// Platforms returns the registered platform identifiers, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Test returns the test specification registered under the given name.
func (r *Registry) Test(name string) (types.TestSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tests[name]
	return spec, ok
}

// Tests returns all registered test specifications, sorted by identifier.
func (r *Registry) Tests() []types.TestSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.TestSpec, 0, len(r.tests))
	for _, spec := range r.tests {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnectAll connects every registered adapter. Individual failures are
// logged and reported but do not stop the remaining platforms from coming
// up; the caller decides whether a partially connected registry is usable.
func (r *Registry) ConnectAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	failures := make(map[string]error)
	for id, a := range r.adapters {
		if err := a.Connect(ctx); err != nil {
			r.config.Log.Error("failed to connect platform", "platform", id, "err", err)
			failures[id] = err
			continue
		}
		r.config.Log.Info("platform connected", "platform", id)
	}
	return failures
}

// Shutdown disconnects every adapter. Safe to call more than once.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, a := range r.adapters {
		if err := a.Disconnect(); err != nil {
			r.config.Log.Warn("error disconnecting platform", "platform", id, "err", err)
		}
	}
}
