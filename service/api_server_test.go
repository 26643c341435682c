package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bruce-robotics/bruce-acceptor/registry"
	"github.com/bruce-robotics/bruce-acceptor/runner"
	"github.com/bruce-robotics/bruce-acceptor/store"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

func newTestAPI(t *testing.T) *APIServer {
	t.Helper()
	dir := t.TempDir()

	platformsPath := filepath.Join(dir, "platforms.yaml")
	require.NoError(t, os.WriteFile(platformsPath, []byte(`
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

	testsPath := filepath.Join(dir, "tests.yaml")
	require.NoError(t, os.WriteFile(testsPath, []byte(`
test_cases:
  walk_test:
    name: Walk Test
    steps:
      - name: boot
        command: ./init.sh
      - name: walk
        commands:
          - walk start
          - walk stop
`), 0o644))

	reg, err := registry.NewRegistry(registry.Config{
		PlatformConfigFile: platformsPath,
		TestConfigFile:     testsPath,
	})
	require.NoError(t, err)
	t.Cleanup(reg.Shutdown)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewAPIServer(reg, runner.New(reg, st, nil), st, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPlatformEndpoints(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	t.Run("list platforms", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/platforms", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []struct {
			Platform string `json:"platform"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
	})

	t.Run("unknown platform is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/mars-rover/connect", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("connect then status", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/connect", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodGet, "/api/platforms/bruce/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var status types.PlatformStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.Connected)
		assert.Equal(t, types.ModeSimulation, status.Mode)
	})

	t.Run("disconnect", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/disconnect", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var status types.PlatformStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.False(t, status.Connected)
	})
}

func TestExecuteEndpoint(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	require.Equal(t, http.StatusOK,
		doJSON(t, h, http.MethodPost, "/api/platforms/bruce/connect", nil).Code)

	t.Run("missing command is 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/execute", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("command runs", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/execute",
			map[string]interface{}{"command": "walk start"})
		require.Equal(t, http.StatusOK, rec.Code)

		var result types.CommandResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("background command returns a handle", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/execute",
			map[string]interface{}{"command": "gazebo --verbose", "background": true})
		require.Equal(t, http.StatusOK, rec.Code)

		var result types.CommandResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.NotEmpty(t, result.HandleID)

		stop := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/stop",
			map[string]string{"handle_id": result.HandleID})
		require.Equal(t, http.StatusOK, stop.Code)
		var stopped map[string]bool
		require.NoError(t, json.Unmarshal(stop.Body.Bytes(), &stopped))
		assert.True(t, stopped["stopped"])
	})

	t.Run("missing handle_id is 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/stop", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown handle stops nothing", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/stop",
			map[string]string{"handle_id": "sim-424242"})
		require.Equal(t, http.StatusOK, rec.Code)
		var stopped map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopped))
		assert.False(t, stopped["stopped"])
	})

	t.Run("start-sim only works on simulator platforms", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/bruce/start-sim", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		require.Equal(t, http.StatusOK,
			doJSON(t, h, http.MethodPost, "/api/platforms/gazebo/connect", nil).Code)
		rec = doJSON(t, h, http.MethodPost, "/api/platforms/gazebo/start-sim", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var result types.CommandResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.HandleID)

		require.Equal(t, http.StatusOK,
			doJSON(t, h, http.MethodPost, "/api/platforms/gazebo/disconnect", nil).Code)
	})

	t.Run("disconnected platform is 400 with structured failure", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/platforms/gazebo/execute",
			map[string]interface{}{"command": "ls"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var result types.CommandResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.Success)
		assert.Equal(t, types.ExitCodeExecError, result.ExitCode)
		assert.Contains(t, result.Error, "not connected")
	})
}

func TestTestAndResultEndpoints(t *testing.T) {
	api := newTestAPI(t)
	h := api.Handler()

	require.Equal(t, http.StatusOK,
		doJSON(t, h, http.MethodPost, "/api/platforms/bruce/connect", nil).Code)
	require.Equal(t, http.StatusOK,
		doJSON(t, h, http.MethodPost, "/api/platforms/gazebo/connect", nil).Code)

	t.Run("aggregate status", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var statuses map[string]types.PlatformStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
		require.Len(t, statuses, 2)
		assert.True(t, statuses["bruce"].Connected)
		assert.True(t, statuses["gazebo"].Connected)
	})

	t.Run("get one test", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/tests/walk_test", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var spec types.TestSpec
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
		assert.Equal(t, "Walk Test", spec.Name)

		rec = doJSON(t, h, http.MethodGet, "/api/tests/fly_test", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list tests", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/tests", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var specs []types.TestSpec
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &specs))
		require.Len(t, specs, 1)
		assert.Equal(t, "walk_test", specs[0].ID)
	})

	t.Run("unknown test is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/tests/execute",
			map[string]interface{}{"test": "fly_test"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown target platform is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/tests/execute",
			map[string]interface{}{"test": "walk_test", "platforms": []string{"mars-rover"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no results yet is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/results/walk_test", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("run then read back results", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/tests/execute",
			map[string]interface{}{"test": "walk_test"})
		require.Equal(t, http.StatusOK, rec.Code)

		var result runner.RunResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Len(t, result.Platforms, 2)
		assert.True(t, result.Platforms["bruce"].Success)

		rec = doJSON(t, h, http.MethodGet, "/api/results/walk_test", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var saved map[string]types.TestSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
		require.Len(t, saved, 2)

		rec = doJSON(t, h, http.MethodGet, "/api/results/walk_test/comparison", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var comparisons []types.Comparison
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comparisons))
		require.Len(t, comparisons, 1)
		assert.True(t, comparisons[0].SuccessParity)

		rec = doJSON(t, h, http.MethodGet, "/api/results?platform=bruce&limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var recent []types.TestSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
		require.Len(t, recent, 1)
		assert.Equal(t, "bruce", recent[0].Platform)

		rec = doJSON(t, h, http.MethodGet, "/api/results?limit=nope", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, h, http.MethodGet, "/api/data/statistics", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats map[string]store.PlatformStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		require.Len(t, stats, 2)
		assert.Equal(t, 1, stats["bruce"].TotalRuns)
	})
}
