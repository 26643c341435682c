package runner

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

func TestConsoleResultFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleResultFormatter(&buf)

	result := &RunResult{
		RunID:    "run-1",
		TestID:   "walk_test",
		TestName: "Walk Test",
		Platforms: map[string]types.TestSummary{
			"bruce":  {Platform: "bruce", Success: true, TotalSteps: 2, SuccessfulSteps: 2, SuccessRate: 1},
			"gazebo": {Platform: "gazebo", Success: false, TotalSteps: 2, SuccessfulSteps: 1, SuccessRate: 0.5},
		},
		Errors: map[string]string{"bench": "unknown platform"},
		Comparisons: []types.Comparison{
			{PlatformA: "bruce", PlatformB: "gazebo", SuccessParity: false, StepsA: 2, StepsB: 1},
		},
		Duration: 3 * time.Second,
	}

	require.NoError(t, f.FormatResult(result))

	out := buf.String()
	assert.Contains(t, out, "Walk Test")
	assert.Contains(t, out, "bruce")
	assert.Contains(t, out, "gazebo")
	assert.Contains(t, out, "unknown platform")
	assert.Contains(t, out, "bruce vs gazebo")
	assert.Contains(t, out, "diverged")
}
