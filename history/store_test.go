package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/initializ/convey/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBegin_AllocatesIncreasingNumbers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Begin(ctx, "run-a", "app", "main", "abc123")
	require.NoError(t, err)
	second, err := s.Begin(ctx, "run-b", "app", "main", "def456")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestFinish_RecordsOutcomeAndStages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	number, err := s.Begin(ctx, "run-a", "app", "main", "abc123")
	require.NoError(t, err)

	out := &pipeline.RunOutcome{
		Success:  false,
		Duration: 90 * time.Second,
		Stages: []pipeline.StageOutcome{
			{Stage: "build", Status: pipeline.StatusSucceeded, Duration: time.Minute},
			{Stage: "test", Status: pipeline.StatusFailed, Kind: pipeline.KindWorkFailed, Duration: 30 * time.Second},
			{Stage: "deploy", Status: pipeline.StatusSkipped},
		},
	}
	require.NoError(t, s.Finish(ctx, number, "app:1", out))

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failure", runs[0].Status)
	assert.Equal(t, "app:1", runs[0].Image)
	assert.Equal(t, int64(90000), runs[0].DurationMS)

	stages, err := s.Stages(ctx, number)
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, "build", stages[0].Name)
	assert.Equal(t, "test", stages[1].Name)
	assert.Equal(t, "work-failed", stages[1].Kind)
	assert.Equal(t, "skipped", stages[2].Status)
}

func TestList_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		_, err := s.Begin(ctx, id, "app", "main", "abc")
		require.NoError(t, err)
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(3), runs[0].Number)
	assert.Equal(t, int64(2), runs[1].Number)
}

func TestStages_EmptyForUnknownRun(t *testing.T) {
	s := openTestStore(t)

	stages, err := s.Stages(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, stages)
}
