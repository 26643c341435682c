package runner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bruce-robotics/bruce-acceptor/adapter"
	"github.com/bruce-robotics/bruce-acceptor/registry"
	"github.com/bruce-robotics/bruce-acceptor/store"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

// fakeAdapter is a minimal scripted adapter for exercising the runner's
// dispatch and fault handling without a real backend.
type fakeAdapter struct {
	platform  string
	connected bool
	panicMsg  string
}

func (f *fakeAdapter) Platform() string        { return f.platform }
func (f *fakeAdapter) Name() string            { return f.platform }
func (f *fakeAdapter) Kind() types.BackendKind { return types.BackendGazebo }

func (f *fakeAdapter) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeAdapter) Disconnect() error                 { f.connected = false; return nil }

func (f *fakeAdapter) Status(ctx context.Context) types.PlatformStatus {
	return types.PlatformStatus{Platform: f.platform, Connected: f.connected}
}

func (f *fakeAdapter) ExecuteCommand(ctx context.Context, command string, background bool) types.CommandResult {
	return types.NewCommandResult(command, 0, "ok", "")
}

func (f *fakeAdapter) StopBackground(ctx context.Context, handleID string) bool { return false }

func (f *fakeAdapter) ExecuteTest(ctx context.Context, spec types.TestSpec) types.TestSummary {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	summary := types.TestSummary{
		TestID:   spec.ID,
		TestName: spec.Name,
		Platform: f.platform,
	}
	for _, step := range spec.Steps {
		summary.Steps = append(summary.Steps, types.StepResult{Name: step.Name, Success: true})
	}
	summary.Finalize()
	return summary
}

type fakeSource map[string]adapter.Adapter

func (s fakeSource) Adapter(platform string) (adapter.Adapter, bool) {
	a, ok := s[platform]
	return a, ok
}

func (s fakeSource) Platforms() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
platforms:
  bruce:
    kind: robot
    name: BRUCE
    enabled: true
    simulation: true
  gazebo:
    kind: gazebo
    name: Gazebo
    enabled: true
    simulation: true
`), 0o644))

	reg, err := registry.NewRegistry(registry.Config{PlatformConfigFile: path})
	require.NoError(t, err)
	require.Empty(t, reg.ConnectAll(context.Background()))
	t.Cleanup(reg.Shutdown)
	return reg
}

func walkSpec() types.TestSpec {
	return types.TestSpec{
		ID:   "walk_test",
		Name: "Walk Test",
		Steps: []types.TestStep{
			{Name: "boot", Commands: []string{"./init.sh"}},
			{Name: "walk", Commands: []string{"walk start", "walk stop"}},
		},
	}
}

func TestRunAcrossAllPlatforms(t *testing.T) {
	reg := newTestRegistry(t)
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r := New(reg, st, nil)
	result, err := r.Run(context.Background(), walkSpec(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "walk_test", result.TestID)
	require.Len(t, result.Platforms, 2)
	assert.Empty(t, result.Errors)
	assert.True(t, result.Platforms["bruce"].Success)
	assert.True(t, result.Platforms["gazebo"].Success)

	require.Len(t, result.Comparisons, 1)
	c := result.Comparisons[0]
	assert.Equal(t, "bruce", c.PlatformA)
	assert.Equal(t, "gazebo", c.PlatformB)
	assert.True(t, c.SuccessParity)
	assert.Equal(t, 0, c.StepDelta)

	// Results were persisted per platform.
	saved, err := st.GetAll("walk_test")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestRunSubsetOfPlatforms(t *testing.T) {
	reg := newTestRegistry(t)
	r := New(reg, nil, nil)

	result, err := r.Run(context.Background(), walkSpec(), []string{"bruce"})
	require.NoError(t, err)
	require.Len(t, result.Platforms, 1)
	assert.Contains(t, result.Platforms, "bruce")
	assert.Empty(t, result.Comparisons, "a single platform has nothing to compare")
}

func TestRunUnknownPlatform(t *testing.T) {
	reg := newTestRegistry(t)
	r := New(reg, nil, nil)

	result, err := r.Run(context.Background(), walkSpec(), []string{"bruce", "mars-rover"})
	require.NoError(t, err)
	require.Len(t, result.Platforms, 1)
	assert.Equal(t, "unknown platform", result.Errors["mars-rover"])
}

func TestRunSkipsDisconnectedPlatform(t *testing.T) {
	src := fakeSource{
		"bruce":  &fakeAdapter{platform: "bruce", connected: true},
		"gazebo": &fakeAdapter{platform: "gazebo"},
	}
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r := New(src, st, nil)
	result, err := r.Run(context.Background(), walkSpec(), nil)
	require.NoError(t, err)

	require.Len(t, result.Platforms, 1)
	assert.True(t, result.Platforms["bruce"].Success)
	assert.Equal(t, adapter.ErrNotConnected.Error(), result.Errors["gazebo"])
	assert.Empty(t, result.Comparisons)

	// Only the platform that actually ran is persisted.
	saved, err := st.GetAll("walk_test")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Contains(t, saved, "bruce")
}

func TestRunIsolatesFaultingPlatform(t *testing.T) {
	src := fakeSource{
		"bruce":  &fakeAdapter{platform: "bruce", connected: true},
		"gazebo": &fakeAdapter{platform: "gazebo", connected: true, panicMsg: "plugin exploded"},
	}
	r := New(src, nil, nil)

	result, err := r.Run(context.Background(), walkSpec(), nil)
	require.NoError(t, err)

	require.Contains(t, result.Platforms, "bruce")
	summary := result.Platforms["bruce"]
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.TotalSteps)
	assert.Equal(t, 2, summary.SuccessfulSteps)

	assert.NotContains(t, result.Platforms, "gazebo")
	assert.Equal(t, "internal error: plugin exploded", result.Errors["gazebo"])
}
