package repository

import (
	"path/filepath"
	"testing"
	"time"

	"dailysync/internal/db"
	"dailysync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "history.db")))
	t.Cleanup(func() { _ = db.Close() })
}

func newRun(jobID uint, status model.RunStatus, started time.Time) *model.Run {
	run := model.NewRun(model.Job{ID: jobID, SourcePath: "/src", DestPath: "/dst"}, model.OriginScheduled)
	run.Status = status
	run.StartedAt = started
	run.FinishedAt = started.Add(time.Second)
	return run
}

func TestSaveAndGetRecent(t *testing.T) {
	setupDB(t)
	repo := NewRunRepository()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.Save(newRun(1, model.RunSuccess, base)))
	require.NoError(t, repo.Save(newRun(2, model.RunFailed, base.Add(time.Minute))))
	require.NoError(t, repo.Save(newRun(1, model.RunSkipped, base.Add(2*time.Minute))))

	runs, err := repo.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunSkipped, runs[0].Status)
	assert.Equal(t, model.RunFailed, runs[1].Status)
	assert.NotEmpty(t, runs[0].RunID)
}

func TestGetByJobAndFailed(t *testing.T) {
	setupDB(t)
	repo := NewRunRepository()
	base := time.Now()

	require.NoError(t, repo.Save(newRun(1, model.RunSuccess, base)))
	require.NoError(t, repo.Save(newRun(2, model.RunFailed, base)))
	require.NoError(t, repo.Save(newRun(1, model.RunFailed, base.Add(time.Second))))

	runs, err := repo.GetByJob(1, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	failed, err := repo.GetFailed()
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestGetStats(t *testing.T) {
	setupDB(t)
	repo := NewRunRepository()
	now := time.Now()

	for _, st := range []model.RunStatus{model.RunSuccess, model.RunSuccess, model.RunFailed, model.RunSkipped} {
		require.NoError(t, repo.Save(newRun(1, st, now)))
	}

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Success: 2, Failed: 1, Skipped: 1}, stats)
}
