// Package allocator decides which backlog rows each destination receives on a run.
//
// A run takes the slice [NextIndex, NextIndex+total) of the backlog, clamped to
// its length, and cuts it into equal-width contiguous chunks in destination
// order. The cursor advances by what was actually handed out, so rows are never
// assigned twice and under-supply is not skipped on the next run.
package allocator

import (
	"fmt"

	"outreach/internal/models"
)

// Allocate computes the batch for the next run and the progress marker to commit after it.
func Allocate(backlogLen int, progress models.Progress, dests []models.Destination, policy Policy) (models.Batch, models.Progress, error) {
	if err := policy.Validate(); err != nil {
		return models.Batch{}, progress, err
	}
	if len(dests) == 0 {
		return models.Batch{}, progress, ErrNoDestinations
	}
	if progress.NextIndex < 0 || progress.DayCount < 0 {
		return models.Batch{}, progress, fmt.Errorf("%w: %+v", ErrInvalidProgress, progress)
	}
	if progress.NextIndex > backlogLen {
		return models.Batch{}, progress, fmt.Errorf("%w: next index %d beyond backlog of %d rows",
			ErrInvalidProgress, progress.NextIndex, backlogLen)
	}

	day := progress.DayCount + 1
	width := policy.PerDestination(day, len(dests))
	total := policy.Total(day, len(dests))

	start := progress.NextIndex
	end := start + total
	if end > backlogLen {
		end = backlogLen
	}

	batch := models.Batch{
		Day:            day,
		PerDestination: width,
		Start:          start,
		End:            end,
		Assignments:    make([]models.Assignment, 0, len(dests)),
	}

	for i, dest := range dests {
		from := start + i*width
		to := from + width
		if from > end {
			from = end
		}
		if to > end {
			to = end
		}
		batch.Assignments = append(batch.Assignments, models.Assignment{
			Destination: dest,
			Start:       from,
			End:         to,
		})
	}

	next := models.Progress{
		NextIndex: start + batch.Assigned(),
		DayCount:  day,
	}
	return batch, next, nil
}
