package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibedl/vibedl/internal/domain"
)

func newTestStore(t *testing.T) *PersistentStore {
	t.Helper()
	s, err := NewPersistentStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func terminalJob(handle string, state domain.JobState, age time.Duration) *domain.Job {
	return &domain.Job{
		Handle:      handle,
		State:       state,
		SourceURL:   "https://platform.example/watch?v=" + handle,
		StartedAt:   time.Now().Add(-age - time.Minute),
		CompletedAt: time.Now().Add(-age),
	}
}

func TestRecordAndListHistory(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordOutcome(terminalJob("h1", domain.StateCompleted, time.Hour), "First Video", 1024))
	require.NoError(t, s.RecordOutcome(terminalJob("h2", domain.StateFailed, time.Minute), "", 0))

	records, err := s.RecentHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "h2", records[0].Handle)
	assert.Equal(t, "failed", records[0].Status)
	assert.Equal(t, "h1", records[1].Handle)
	assert.Equal(t, "completed", records[1].Status)
	assert.Equal(t, "First Video", records[1].Title)
	assert.Equal(t, int64(1024), records[1].SizeBytes)
}

func TestRecentHistoryLimit(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordOutcome(terminalJob("h", domain.StateCompleted, time.Duration(i)*time.Minute), "", 0))
	}

	records, err := s.RecentHistory(3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// A nonsense limit falls back to the default instead of failing.
	records, err = s.RecentHistory(-1)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestPruneBefore(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordOutcome(terminalJob("old", domain.StateCompleted, 48*time.Hour), "", 0))
	require.NoError(t, s.RecordOutcome(terminalJob("new", domain.StateCompleted, time.Minute), "", 0))

	pruned, err := s.PruneBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	records, err := s.RecentHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Handle)
}
