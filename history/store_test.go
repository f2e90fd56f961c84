package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crisslavik/xStage/types"
)

func newTestStore(t *testing.T, keep int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), keep, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func finishedJob(t *testing.T, status types.JobStatus) (*types.ConversionJob, *types.ConversionResult) {
	t.Helper()
	job, err := types.NewJob("/assets/chair.fbx", filepath.Join(t.TempDir(), "chair.usda"), types.DefaultJobOptions())
	require.NoError(t, err)

	result := &types.ConversionResult{
		JobID:      job.ID,
		Status:     status,
		MethodUsed: "tool:fbx2usd",
		Attempts: []types.AttemptResult{
			{Method: "tool:fbx2usd", Kind: types.MethodTool, Succeeded: true, Duration: time.Second},
		},
		Duration: 2 * time.Second,
	}
	return job, result
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t, 0)
	job, result := finishedJob(t, types.StatusSucceeded)

	require.NoError(t, s.Record(t.Context(), job, result))

	rec, err := s.Get(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "fbx", rec.Format)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, "tool:fbx2usd", rec.MethodUsed)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, int64(2000), rec.DurationMS)
}

func TestGetUnknownJobIsNotFound(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.Get(t.Context(), "no-such-job")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t, 0)

	var ids []string
	for i := 0; i < 3; i++ {
		job, result := finishedJob(t, types.StatusSucceeded)
		require.NoError(t, s.Record(t.Context(), job, result))
		ids = append(ids, job.ID)
		time.Sleep(5 * time.Millisecond)
	}

	recs, err := s.Recent(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ids[2], recs[0].JobID)
	assert.Equal(t, ids[1], recs[1].JobID)
}

func TestRetentionPrunesOldest(t *testing.T) {
	s := newTestStore(t, 2)

	var first string
	for i := 0; i < 3; i++ {
		job, result := finishedJob(t, types.StatusSucceeded)
		require.NoError(t, s.Record(t.Context(), job, result))
		if i == 0 {
			first = job.ID
		}
		time.Sleep(5 * time.Millisecond)
	}

	recs, err := s.Recent(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = s.Get(t.Context(), first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountByStatus(t *testing.T) {
	s := newTestStore(t, 0)

	for _, status := range []types.JobStatus{
		types.StatusSucceeded, types.StatusSucceeded, types.StatusFailed,
	} {
		job, result := finishedJob(t, status)
		require.NoError(t, s.Record(t.Context(), job, result))
	}

	counts, err := s.CountByStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["succeeded"])
	assert.Equal(t, int64(1), counts["failed"])
}
