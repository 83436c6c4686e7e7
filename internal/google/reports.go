package google

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"outreach/internal/models"
	"outreach/internal/worker"

	"google.golang.org/api/sheets/v4"
)

// ReportSheet answers report-submission questions from a "date | name" range
// that the team fills in. The range is read once per process.
type ReportSheet struct {
	service *sheets.Service
	sheetID string
	rng     string
	retry   worker.RetryPolicy

	once      sync.Once
	loadErr   error
	submitted map[string]bool
}

// Reports returns a checker reading rng from the leads spreadsheet. Each read
// attempt is bounded by retry.AttemptTimeout.
func (s *SheetsStore) Reports(rng string, retry worker.RetryPolicy) *ReportSheet {
	if retry.Retryable == nil {
		retry.Retryable = Retryable
	}
	return &ReportSheet{service: s.service, sheetID: s.leadsID, rng: rng, retry: retry}
}

func (r *ReportSheet) HasSubmitted(ctx context.Context, dest models.Destination, date time.Time) (bool, error) {
	r.once.Do(func() {
		r.loadErr = r.load(ctx)
	})
	if r.loadErr != nil {
		return false, r.loadErr
	}
	return r.submitted[reportKey(date.Format(models.DateLayout), dest.Name)], nil
}

func (r *ReportSheet) load(ctx context.Context) error {
	var resp *sheets.ValueRange
	err := worker.Do(ctx, r.retry, func(ctx context.Context) error {
		var err error
		resp, err = r.service.Spreadsheets.Values.Get(r.sheetID, r.rng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("read reports: %w", err)
	}
	r.submitted = make(map[string]bool, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) < 2 {
			continue
		}
		date := strings.TrimSpace(fmt.Sprint(row[0]))
		name := strings.TrimSpace(fmt.Sprint(row[1]))
		if date == "" || name == "" {
			continue
		}
		r.submitted[reportKey(date, name)] = true
	}
	return nil
}

func reportKey(date, name string) string {
	return date + "|" + strings.ToLower(name)
}
