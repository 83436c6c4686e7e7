package workbook

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"outreach/internal/config"
	"outreach/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedWorkbook(t *testing.T, leads int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Leads"))
	require.NoError(t, f.SetSheetRow("Leads", "A1", &[]interface{}{"Company", "Contact"}))
	for i := 0; i < leads; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow("Leads", cell, &[]interface{}{fmt.Sprintf("lead-%d", i), fmt.Sprintf("c%d@example.com", i)}))
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func newTestStore(path string) *Store {
	return NewStore(config.WorkbookConfig{
		Path:          path,
		LeadsSheet:    "Leads",
		ProgressSheet: "Progress",
	}, "")
}

func TestReadBacklog(t *testing.T) {
	s := newTestStore(seedWorkbook(t, 5))

	sheet, err := s.ReadBacklog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Company", "Contact"}, sheet.Header)
	require.Len(t, sheet.Rows, 5)
	assert.Equal(t, "lead-3", sheet.Rows[3].Cells[0])
	assert.Equal(t, 3, sheet.Rows[3].Index)
}

func TestProgressRoundTrip(t *testing.T) {
	s := newTestStore(seedWorkbook(t, 1))
	ctx := context.Background()

	p, err := s.ReadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Progress{}, p)

	require.NoError(t, s.WriteProgress(ctx, models.Progress{NextIndex: 12, DayCount: 2}))
	p, err = s.ReadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Progress{NextIndex: 12, DayCount: 2}, p)
}

func TestReplaceTableClearsPreviousContent(t *testing.T) {
	path := seedWorkbook(t, 6)
	s := newTestStore(path)
	ctx := context.Background()

	sheet, err := s.ReadBacklog(ctx)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceTable(ctx, "Priya", sheet.Header, sheet.Slice(0, 4)))
	require.NoError(t, s.ReplaceTable(ctx, "Priya", sheet.Header, sheet.Slice(4, 6)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Priya")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Company", rows[0][0])
	assert.Equal(t, "lead-4", rows[1][0])
	assert.Equal(t, "lead-5", rows[2][0])
}

func TestReplaceTableSeparateWorkbook(t *testing.T) {
	path := seedWorkbook(t, 2)
	out := filepath.Join(t.TempDir(), "assignments.xlsx")
	s := NewStore(config.WorkbookConfig{Path: path, AssignmentsPath: out, LeadsSheet: "Leads", ProgressSheet: "Progress"}, "")
	ctx := context.Background()

	sheet, err := s.ReadBacklog(ctx)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTable(ctx, "Rohit", sheet.Header, sheet.Rows))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Rohit")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMarkAssigned(t *testing.T) {
	path := seedWorkbook(t, 6)
	s := newTestStore(path)
	ctx := context.Background()

	require.NoError(t, s.MarkAssigned(ctx, 2, 4))
	require.NoError(t, s.MarkAssigned(ctx, 5, 5))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	marked, err := f.GetCellStyle("Leads", "A4")
	require.NoError(t, err)
	assert.NotZero(t, marked)
	marked, err = f.GetCellStyle("Leads", "B5")
	require.NoError(t, err)
	assert.NotZero(t, marked)

	plain, err := f.GetCellStyle("Leads", "A6")
	require.NoError(t, err)
	assert.Zero(t, plain)
	plain, err = f.GetCellStyle("Leads", "A3")
	require.NoError(t, err)
	assert.Zero(t, plain)
}
