// Package workbook is a RowStore backed by local .xlsx files. It mirrors the
// Sheets layout (leads tab, progress tab, one tab per destination table) so a
// team can run the rotation from a shared drive or rehearse it offline.
package workbook

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"outreach/internal/config"
	"outreach/internal/models"

	"github.com/xuri/excelize/v2"
)

type Store struct {
	path            string
	assignmentsPath string
	leadsSheet      string
	progressSheet   string
	color           string
	mu              sync.Mutex
}

func NewStore(cfg config.WorkbookConfig, assignedColor string) *Store {
	assignments := cfg.AssignmentsPath
	if assignments == "" {
		assignments = cfg.Path
	}
	if assignedColor == "" {
		assignedColor = models.DefaultAssignedColor
	}
	return &Store{
		path:            cfg.Path,
		assignmentsPath: assignments,
		leadsSheet:      cfg.LeadsSheet,
		progressSheet:   cfg.ProgressSheet,
		color:           assignedColor,
	}
}

func (s *Store) ReadBacklog(ctx context.Context) (models.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return models.Sheet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.leadsSheet)
	if err != nil {
		return models.Sheet{}, fmt.Errorf("read %s: %w", s.leadsSheet, err)
	}

	var sheet models.Sheet
	if len(rows) == 0 {
		return sheet, nil
	}
	sheet.Header = toCells(rows[0])
	data := rows[1:]
	for len(data) > 0 && len(data[len(data)-1]) == 0 {
		data = data[:len(data)-1]
	}
	sheet.Rows = make([]models.Lead, len(data))
	for i, row := range data {
		sheet.Rows[i] = models.Lead{Index: i, Cells: toCells(row)}
	}
	return sheet, nil
}

// ReadProgress reads A2 (next index) and B2 (day count) of the progress tab.
// A missing tab reads as zero progress.
func (s *Store) ReadProgress(ctx context.Context) (models.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return models.Progress{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(s.progressSheet); idx < 0 {
		return models.Progress{}, nil
	}

	var p models.Progress
	if p.NextIndex, err = readInt(f, s.progressSheet, "A2"); err != nil {
		return p, fmt.Errorf("next index: %w", err)
	}
	if p.DayCount, err = readInt(f, s.progressSheet, "B2"); err != nil {
		return p, fmt.Errorf("day count: %w", err)
	}
	return p, nil
}

func (s *Store) WriteProgress(ctx context.Context, p models.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(s.path, func(f *excelize.File) error {
		if err := ensureSheet(f, s.progressSheet); err != nil {
			return err
		}
		if err := f.SetSheetRow(s.progressSheet, "A1", &[]interface{}{"next_unassigned_index", "day_count"}); err != nil {
			return err
		}
		return f.SetSheetRow(s.progressSheet, "A2", &[]interface{}{p.NextIndex, p.DayCount})
	})
}

// ReplaceTable drops and recreates the destination tab, then writes header and rows.
func (s *Store) ReplaceTable(ctx context.Context, table string, header []interface{}, rows []models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(s.assignmentsPath, func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(table); idx >= 0 {
			if len(f.GetSheetList()) == 1 {
				// a workbook needs at least one sheet; make room before dropping the last one
				if _, err := f.NewSheet(table + "_tmp"); err != nil {
					return err
				}
				if err := f.DeleteSheet(table); err != nil {
					return err
				}
				if err := f.SetSheetName(table+"_tmp", table); err != nil {
					return err
				}
			} else if err := f.DeleteSheet(table); err != nil {
				return err
			}
		}
		if err := ensureSheet(f, table); err != nil {
			return err
		}

		line := 1
		if len(header) > 0 {
			cell, _ := excelize.CoordinatesToCellName(1, line)
			if err := f.SetSheetRow(table, cell, &header); err != nil {
				return err
			}
			line++
		}
		for _, row := range rows {
			cells := row.Cells
			cell, _ := excelize.CoordinatesToCellName(1, line)
			if err := f.SetSheetRow(table, cell, &cells); err != nil {
				return err
			}
			line++
		}
		return nil
	})
}

// MarkAssigned fills backlog rows [start, end) with the assigned colour.
func (s *Store) MarkAssigned(ctx context.Context, start, end int) error {
	if start >= end {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(s.path, func(f *excelize.File) error {
		cols, err := f.GetCols(s.leadsSheet)
		if err != nil {
			return err
		}
		width := len(cols)
		if width == 0 {
			width = 1
		}

		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{s.color}, Pattern: 1},
		})
		if err != nil {
			return err
		}

		// header is row 1, data row i is row i+2
		topLeft, _ := excelize.CoordinatesToCellName(1, start+2)
		bottomRight, _ := excelize.CoordinatesToCellName(width, end+1)
		return f.SetCellStyle(s.leadsSheet, topLeft, bottomRight, style)
	})
}

// update opens path (or starts a new workbook), applies fn and saves.
func (s *Store) update(path string, fn func(f *excelize.File) error) error {
	f, err := excelize.OpenFile(path)
	if os.IsNotExist(err) {
		f = excelize.NewFile()
	} else if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func ensureSheet(f *excelize.File, name string) error {
	if idx, _ := f.GetSheetIndex(name); idx >= 0 {
		return nil
	}
	_, err := f.NewSheet(name)
	return err
}

func readInt(f *excelize.File, sheet, cell string) (int, error) {
	v, err := f.GetCellValue(sheet, cell)
	if err != nil {
		return 0, err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("cell %s!%s value %q is not an integer", sheet, cell, v)
	}
	return n, nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
