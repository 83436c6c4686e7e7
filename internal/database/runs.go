package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"outreach/internal/events"
	"outreach/internal/models"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string
	Task       string
	Status     string
	DayCount   sql.NullInt64
	StartIndex sql.NullInt64
	EndIndex   sql.NullInt64
	Sent       int
	Failed     int
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordRun stores a finished run and, for assign runs, each destination's range.
func (db *DB) RecordRun(ctx context.Context, res *models.RunResult, status string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var day, start, end sql.NullInt64
	if res.Batch != nil {
		day = sql.NullInt64{Int64: int64(res.Batch.Day), Valid: true}
		start = sql.NullInt64{Int64: int64(res.Batch.Start), Valid: true}
		end = sql.NullInt64{Int64: int64(res.Batch.End), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO runs (id, task, status, day_count, start_index, end_index, sent, failed, dry_run, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Task, status, day, start, end,
		len(res.Report.Sent), len(res.Report.Failures), res.DryRun,
		res.StartedAt.UTC(), res.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if res.Batch != nil {
		for i, a := range res.Batch.Assignments {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO assignments (run_id, destination, position, start_index, end_index)
                VALUES (?, ?, ?, ?, ?)`,
				res.RunID, a.Destination.Name, i, a.Start, a.End,
			)
			if err != nil {
				return fmt.Errorf("insert assignment: %w", err)
			}
		}
	}

	return tx.Commit()
}

// RecentRuns returns the latest runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, task, status, day_count, start_index, end_index, sent, failed, dry_run, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Task, &r.Status, &r.DayCount, &r.StartIndex, &r.EndIndex,
			&r.Sent, &r.Failed, &r.DryRun, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AssignedRanges returns every committed range handed to a destination, oldest first.
func (db *DB) AssignedRanges(ctx context.Context, destination string) ([]models.Assignment, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT a.start_index, a.end_index
        FROM assignments a
        JOIN runs r ON r.id = a.run_id
        WHERE a.destination = ? AND r.dry_run = 0 AND r.status != ?
        ORDER BY a.start_index`, destination, models.RunStatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		a := models.Assignment{Destination: models.Destination{Name: destination}}
		if err := rows.Scan(&a.Start, &a.End); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// OnRunFinished journals a run_finished event.
func (db *DB) OnRunFinished(ctx context.Context, e *events.Event) error {
	var p events.RunFinishedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if p.Result == nil {
		return errors.New("run_finished event without result")
	}
	return db.RecordRun(ctx, p.Result, p.Status)
}
