package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	newSheetRows    = 1000
	newSheetColumns = 20
)

// Sheets stores each collection as a worksheet of one Google spreadsheet.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheets authenticates with a service-account credentials file.
func NewSheets(ctx context.Context, spreadsheetID, credentialsFile string, opts ...option.ClientOption) (*Sheets, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("%w: spreadsheet id is empty", ErrUnavailable)
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %w", ErrUnavailable, err)
	}
	s := &Sheets{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: make(map[string]int64)}
	if err := s.loadSheetIDs(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sheets) loadSheetIDs(ctx context.Context) error {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return classifySheetsError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range doc.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return nil
}

func (s *Sheets) sheetID(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	if err := s.loadSheetIDs(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok = s.sheetIDs[name]; !ok {
		return 0, fmt.Errorf("%w: worksheet %s", ErrNotFound, name)
	}
	return id, nil
}

func (s *Sheets) EnsureSheet(ctx context.Context, name string, header []string) error {
	if _, err := s.sheetID(ctx, name); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{
			Title: name,
			GridProperties: &sheets.GridProperties{
				RowCount:    newSheetRows,
				ColumnCount: int64(max(newSheetColumns, len(header))),
			},
		}},
	}}}
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return classifySheetsError(err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		s.mu.Lock()
		s.sheetIDs[name] = resp.Replies[0].AddSheet.Properties.SheetId
		s.mu.Unlock()
	}
	return s.AppendRow(ctx, name, header)
}

func (s *Sheets) Rows(ctx context.Context, name string) ([][]string, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(name)).Context(ctx).Do()
	if err != nil {
		return nil, classifySheetsError(err)
	}
	rows := make([][]string, 0, len(vr.Values))
	for _, raw := range vr.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Sheets) AppendRow(ctx context.Context, name string, values []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteSheet(name)+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return classifySheetsError(err)
}

func (s *Sheets) UpdateCell(ctx context.Context, name string, row, col int, value string) error {
	cell := fmt.Sprintf("%s!%s%d", quoteSheet(name), columnLetters(col), row)
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cell, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return classifySheetsError(err)
}

func (s *Sheets) DeleteRow(ctx context.Context, name string, row int) error {
	id, err := s.sheetID(ctx, name)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		DeleteDimension: &sheets.DeleteDimensionRequest{Range: &sheets.DimensionRange{
			SheetId:         id,
			Dimension:       "ROWS",
			StartIndex:      int64(row - 1),
			EndIndex:        int64(row),
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return classifySheetsError(err)
}

func (s *Sheets) Close() error { return nil }

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetters converts a 1-based column index to A1 letters (1 -> A, 27 -> AA).
func columnLetters(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func classifySheetsError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusConflict, gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
			return fmt.Errorf("%w: sheets %d: %w", ErrWriteConflict, gerr.Code, err)
		case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: sheets %d: %w", ErrUnavailable, gerr.Code, err)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: sheets: %w", ErrNotFound, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
