package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func summary(testID, platform string, success bool) types.TestSummary {
	s := types.TestSummary{
		TestID:    testID,
		TestName:  "Walk Test",
		Platform:  platform,
		Timestamp: time.Now(),
		Steps: []types.StepResult{
			{Name: "boot", Success: true},
			{Name: "walk", Success: success},
		},
	}
	s.Finalize()
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save("run-1", summary("walk_test", "bruce", true)))

	got, err := s.Get("walk_test", "bruce")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "walk_test", got.TestID)
	assert.Equal(t, "bruce", got.Platform)
	assert.True(t, got.Success)
	assert.Len(t, got.Steps, 2)
}

func TestGetReturnsLatest(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save("run-1", summary("walk_test", "bruce", true)))
	require.NoError(t, s.Save("run-2", summary("walk_test", "bruce", false)))

	got, err := s.Get("walk_test", "bruce")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Success, "most recent result wins")
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get("walk_test", "bruce")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetUsesCache(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save("run-1", summary("walk_test", "bruce", true)))

	first, err := s.Get("walk_test", "bruce")
	require.NoError(t, err)
	second, err := s.Get("walk_test", "bruce")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A new save invalidates the cached entry.
	require.NoError(t, s.Save("run-2", summary("walk_test", "bruce", false)))
	third, err := s.Get("walk_test", "bruce")
	require.NoError(t, err)
	assert.False(t, third.Success)
}

func TestGetAll(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save("run-1", summary("walk_test", "bruce", true)))
	require.NoError(t, s.Save("run-1", summary("walk_test", "gazebo", false)))
	require.NoError(t, s.Save("run-2", summary("walk_test", "gazebo", true)))
	require.NoError(t, s.Save("run-3", summary("other_test", "bruce", true)))

	all, err := s.GetAll("walk_test")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all["bruce"].Success)
	assert.True(t, all["gazebo"].Success, "latest gazebo result wins")
}

func TestList(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save("run-1", summary("walk_test", "bruce", true)))
	require.NoError(t, s.Save("run-2", summary("walk_test", "gazebo", true)))
	require.NoError(t, s.Save("run-3", summary("balance_test", "bruce", false)))

	t.Run("all platforms, newest first", func(t *testing.T) {
		got, err := s.List("", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "balance_test", got[0].TestID)
	})

	t.Run("filtered by platform", func(t *testing.T) {
		got, err := s.List("bruce", 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("limit applies", func(t *testing.T) {
		got, err := s.List("", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
	})
}

func TestStatistics(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save("run-1", summary("walk_test", "bruce", true)))
	require.NoError(t, s.Save("run-2", summary("walk_test", "bruce", false)))
	require.NoError(t, s.Save("run-3", summary("walk_test", "gazebo", true)))

	stats, err := s.Statistics()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	bruce := stats["bruce"]
	assert.Equal(t, 2, bruce.TotalRuns)
	assert.Equal(t, 1, bruce.Passed)
	assert.Equal(t, 1, bruce.Failed)
	assert.Equal(t, 0.5, bruce.PassRate)

	gazebo := stats["gazebo"]
	assert.Equal(t, 1, gazebo.TotalRuns)
	assert.Equal(t, 1.0, gazebo.PassRate)
}

func TestStatisticsEmpty(t *testing.T) {
	s := openTestStore(t)
	stats, err := s.Statistics()
	require.NoError(t, err)
	assert.Empty(t, stats)
}
