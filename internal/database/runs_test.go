package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"outreach/internal/events"
	"outreach/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "journal.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "journal.db")
	db, err := NewDB(path, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestRecordRun(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2025, 8, 20, 9, 1, 0, 0, time.UTC)

	assign := &models.RunResult{
		RunID:      "run-1",
		Task:       models.TaskAssign,
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Second),
		Batch: &models.Batch{
			Day:   3,
			Start: 20,
			End:   27,
			Assignments: []models.Assignment{
				{Destination: models.Destination{Name: "Aakash"}, Start: 20, End: 24},
				{Destination: models.Destination{Name: "Priya"}, Start: 24, End: 27},
				{Destination: models.Destination{Name: "Rohit"}, Start: 27, End: 27},
			},
		},
		Report: models.NotifyReport{Sent: []string{"Aakash", "Priya"}, Failures: []models.SendFailure{{Destination: "Rohit"}}},
	}
	require.NoError(t, db.RecordRun(ctx, assign, models.RunStatusPartial))

	notify := &models.RunResult{
		RunID:      "run-2",
		Task:       models.TaskNotify,
		StartedAt:  started.Add(10 * time.Hour),
		FinishedAt: started.Add(10 * time.Hour),
		Report:     models.NotifyReport{Sent: []string{"Aakash"}},
	}
	require.NoError(t, db.RecordRun(ctx, notify, models.RunStatusSuccess))

	runs, err := db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.False(t, runs[0].DayCount.Valid)

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, int64(3), runs[1].DayCount.Int64)
	assert.Equal(t, int64(20), runs[1].StartIndex.Int64)
	assert.Equal(t, int64(27), runs[1].EndIndex.Int64)
	assert.Equal(t, 2, runs[1].Sent)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, models.RunStatusPartial, runs[1].Status)

	ranges, err := db.AssignedRanges(ctx, "Priya")
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, 24, ranges[0].Start)
	assert.Equal(t, 3, ranges[0].Len())
}

func TestRecordRunDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	res := &models.RunResult{RunID: "dup", Task: models.TaskRemind, StartedAt: time.Now(), FinishedAt: time.Now()}

	require.NoError(t, db.RecordRun(ctx, res, models.RunStatusSuccess))
	assert.Error(t, db.RecordRun(ctx, res, models.RunStatusSuccess))
}

func TestAssignedRangesSkipsDryRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	res := &models.RunResult{
		RunID:     "dry",
		Task:      models.TaskAssign,
		DryRun:    true,
		StartedAt: time.Now(), FinishedAt: time.Now(),
		Batch: &models.Batch{Assignments: []models.Assignment{
			{Destination: models.Destination{Name: "Meena"}, Start: 0, End: 5},
		}},
	}
	require.NoError(t, db.RecordRun(ctx, res, models.RunStatusDryRun))

	ranges, err := db.AssignedRanges(ctx, "Meena")
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestOnRunFinished(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	bus := events.NewEventBus()
	bus.Subscribe(events.EventRunFinished, db.OnRunFinished)

	started := time.Date(2025, 8, 20, 21, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(ctx, events.EventRunFinished, events.RunFinishedPayload{
		Result: &models.RunResult{
			RunID:      "run-9",
			Task:       models.TaskRemind,
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Report:     models.NotifyReport{Sent: []string{"Aakash"}},
		},
		Status: models.RunStatusSuccess,
	})
	require.NoError(t, err)

	runs, err := db.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-9", runs[0].ID)
	assert.Equal(t, models.TaskRemind, runs[0].Task)

	assert.Error(t, bus.PublishJSON(ctx, events.EventRunFinished, events.RunFinishedPayload{}))
}
