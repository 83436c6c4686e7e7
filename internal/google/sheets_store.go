package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"outreach/internal/config"
	"outreach/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore keeps the backlog, the progress cells and the per-destination
// tables in Google Sheets.
type SheetsStore struct {
	service       *sheets.Service
	leadsID       string
	assignmentsID string
	leads         gridRange
	leadsRange    string
	progressRange string
	progressSheet string
	color         *sheets.Color
	sheetIDs      map[string]int64
	cacheMu       sync.RWMutex
}

func NewSheetsStore(ctx context.Context, cfg config.GoogleConfig) (*SheetsStore, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return NewSheetsStoreWithOptions(ctx, cfg, option.WithHTTPClient(jwt.Client(ctx)))
}

// NewSheetsStoreWithOptions builds the store with explicit client options.
func NewSheetsStoreWithOptions(ctx context.Context, cfg config.GoogleConfig, opts ...option.ClientOption) (*SheetsStore, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	leads, err := parseA1(cfg.LeadsRange)
	if err != nil {
		return nil, err
	}
	var progress gridRange
	if cfg.ProgressRange != "" {
		if progress, err = parseA1(cfg.ProgressRange); err != nil {
			return nil, err
		}
	}
	color, err := parseColor(cfg.AssignedColor)
	if err != nil {
		return nil, err
	}

	assignmentsID := cfg.AssignmentsSpreadsheetID
	if assignmentsID == "" {
		assignmentsID = cfg.LeadsSpreadsheetID
	}

	return &SheetsStore{
		service:       srv,
		leadsID:       cfg.LeadsSpreadsheetID,
		assignmentsID: assignmentsID,
		leads:         leads,
		leadsRange:    cfg.LeadsRange,
		progressRange: cfg.ProgressRange,
		progressSheet: progress.Sheet,
		color:         color,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// TestConnection reads the first cell of the leads range.
func (s *SheetsStore) TestConnection(ctx context.Context) error {
	probe := fmt.Sprintf("%s!A1", quoteSheet(s.leads.Sheet))
	if _, err := s.service.Spreadsheets.Values.Get(s.leadsID, probe).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ReadBacklog returns the header and every data row of the leads range in order.
func (s *SheetsStore) ReadBacklog(ctx context.Context) (models.Sheet, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.leadsID, s.leadsRange).Context(ctx).Do()
	if err != nil {
		return models.Sheet{}, err
	}
	return sheetFromValues(resp.Values), nil
}

func sheetFromValues(values [][]interface{}) models.Sheet {
	var sheet models.Sheet
	if len(values) == 0 {
		return sheet
	}
	sheet.Header = values[0]
	rows := values[1:]
	// trailing blank rows are not part of the backlog
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	sheet.Rows = make([]models.Lead, len(rows))
	for i, row := range rows {
		sheet.Rows[i] = models.Lead{Index: i, Cells: row}
	}
	return sheet
}

// ReadProgress reads the two progress cells. Empty cells and a missing progress
// tab read as zero.
func (s *SheetsStore) ReadProgress(ctx context.Context) (models.Progress, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.leadsID, s.progressRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		if s.progressTabMissing(ctx, err) {
			return models.Progress{}, nil
		}
		return models.Progress{}, err
	}

	var p models.Progress
	if len(resp.Values) == 0 {
		return p, nil
	}
	row := resp.Values[0]
	if len(row) > 0 {
		if p.NextIndex, err = cellInt(row[0]); err != nil {
			return p, fmt.Errorf("next index: %w", err)
		}
	}
	if len(row) > 1 {
		if p.DayCount, err = cellInt(row[1]); err != nil {
			return p, fmt.Errorf("day count: %w", err)
		}
	}
	return p, nil
}

// WriteProgress overwrites the progress cells, creating the progress tab on the
// first write.
func (s *SheetsStore) WriteProgress(ctx context.Context, p models.Progress) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{p.NextIndex, p.DayCount}},
	}
	update := func() error {
		_, err := s.service.Spreadsheets.Values.Update(s.leadsID, s.progressRange, valueRange).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	}

	err := update()
	if err == nil || !s.progressTabMissing(ctx, err) {
		return err
	}
	if _, err := s.ensureSheet(ctx, s.leadsID, s.progressSheet); err != nil {
		return err
	}
	return update()
}

// progressTabMissing reports whether err is the range error Sheets returns for
// a tab that does not exist yet.
func (s *SheetsStore) progressTabMissing(ctx context.Context, err error) bool {
	var apiErr *googleapi.Error
	if s.progressSheet == "" || !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return false
	}
	_, lookupErr := s.GetSheetIdByName(ctx, s.leadsID, s.progressSheet)
	return errors.Is(lookupErr, errSheetNotFound)
}

// ReplaceTable clears the destination tab and writes header plus rows from A1.
// The tab is created when missing.
func (s *SheetsStore) ReplaceTable(ctx context.Context, table string, header []interface{}, rows []models.Lead) error {
	if _, err := s.ensureSheet(ctx, s.assignmentsID, table); err != nil {
		return err
	}

	name := quoteSheet(table)
	if _, err := s.service.Spreadsheets.Values.Clear(s.assignmentsID, name, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to clear %s: %w", table, err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	if len(header) > 0 {
		values = append(values, header)
	}
	for _, row := range rows {
		values = append(values, row.Cells)
	}
	if len(values) == 0 {
		return nil
	}

	_, err := s.service.Spreadsheets.Values.Update(s.assignmentsID, name+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to write %s: %w", table, err)
	}
	return nil
}

// MarkAssigned paints the backlog rows [start, end) with the assigned colour.
func (s *SheetsStore) MarkAssigned(ctx context.Context, start, end int) error {
	if start >= end {
		return nil
	}
	sheetID, err := s.ensureSheet(ctx, s.leadsID, s.leads.Sheet)
	if err != nil {
		return err
	}

	// data row i sits one row below the header
	first := int64(s.leads.StartRow + 1 + start)
	grid := &sheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    first,
		EndRowIndex:      first + int64(end-start),
		StartColumnIndex: int64(s.leads.StartCol),
	}
	if s.leads.EndCol > 0 {
		grid.EndColumnIndex = int64(s.leads.EndCol)
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: grid,
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{BackgroundColor: s.color},
				},
				Fields: "userEnteredFormat.backgroundColor",
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.leadsID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to apply formatting: %w", err)
	}
	return nil
}

// ensureSheet returns the numeric id of a tab, creating the tab if it doesn't exist.
func (s *SheetsStore) ensureSheet(ctx context.Context, spreadID, title string) (int64, error) {
	key := spreadID + "/" + title
	s.cacheMu.RLock()
	id, ok := s.sheetIDs[key]
	s.cacheMu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := s.GetSheetIdByName(ctx, spreadID, title)
	if errors.Is(err, errSheetNotFound) {
		resp, addErr := s.service.Spreadsheets.BatchUpdate(spreadID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
			}},
		}).Context(ctx).Do()
		if addErr != nil {
			return 0, fmt.Errorf("unable to add sheet %q: %w", title, addErr)
		}
		if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
			return 0, fmt.Errorf("add sheet %q: empty reply", title)
		}
		id, err = resp.Replies[0].AddSheet.Properties.SheetId, nil
	}
	if err != nil {
		return 0, err
	}

	s.cacheMu.Lock()
	s.sheetIDs[key] = id
	s.cacheMu.Unlock()
	return id, nil
}

var errSheetNotFound = errors.New("sheet not found")

// GetSheetIdByName returns the numeric id of the tab with the given title.
func (s *SheetsStore) GetSheetIdByName(ctx context.Context, spreadID, sheetName string) (int64, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(spreadID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", errSheetNotFound, sheetName)
}

// Retryable reports whether a Sheets API error is transient.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, errSheetNotFound)
}

func cellInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case float64:
		return int(val), nil
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("cell value %q is not an integer", val)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected cell value %v", v)
	}
}

// parseColor converts "#RRGGBB" into a Sheets colour.
func parseColor(hex string) (*sheets.Color, error) {
	if hex == "" {
		hex = models.DefaultAssignedColor
	}
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return nil, fmt.Errorf("invalid colour %q", hex)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q", hex)
	}
	return &sheets.Color{
		Red:   float64((n>>16)&0xff) / 255,
		Green: float64((n>>8)&0xff) / 255,
		Blue:  float64(n&0xff) / 255,
	}, nil
}
