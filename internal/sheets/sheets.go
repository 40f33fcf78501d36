// Package sheets appends finished report rows to a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"google.golang.org/api/sheets/v4"
)

// valuesAPI abstracts the spreadsheet values calls we use, enabling test mocks.
type valuesAPI interface {
	FirstRow(ctx context.Context, rng string) ([]string, error)
	Update(ctx context.Context, rng string, row []string) error
	Append(ctx context.Context, rng string, row []string) error
}

// serviceValues implements valuesAPI on the Sheets v4 client.
type serviceValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (s *serviceValues) FirstRow(ctx context.Context, rng string) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	row := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		row[i] = fmt.Sprint(v)
	}
	return row, nil
}

// rawInput stores cell text exactly as sent. Driver input such as "=SUM(A1)"
// or "+57 300" must never be parsed as a formula or a number.
const rawInput = "RAW"

func (s *serviceValues) Update(ctx context.Context, rng string, row []string) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, valueRange(row)).
		ValueInputOption(rawInput).
		Context(ctx).
		Do()
	return err
}

func (s *serviceValues) Append(ctx context.Context, rng string, row []string) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, valueRange(row)).
		ValueInputOption(rawInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func valueRange(row []string) *sheets.ValueRange {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return &sheets.ValueRange{Values: [][]interface{}{cells}}
}

// Appender writes report rows to the first worksheet (or a named one). The
// header row is written lazily when the sheet is empty.
type Appender struct {
	values valuesAPI
	sheet  string
	header []string

	mu            sync.Mutex
	headerChecked bool
}

// AppenderOpts holds parameters for creating an Appender.
type AppenderOpts struct {
	Service       *sheets.Service
	SpreadsheetID string
	SheetName     string   // worksheet title; empty means the first sheet
	Header        []string // column titles for the configured flow
	// For testing: inject a mock instead of the Sheets API.
	Values valuesAPI
}

// New creates an Appender.
func New(opts AppenderOpts) (*Appender, error) {
	if len(opts.Header) == 0 {
		return nil, fmt.Errorf("sheets: header is required")
	}
	values := opts.Values
	if values == nil {
		if opts.Service == nil {
			return nil, fmt.Errorf("sheets: service is required")
		}
		if opts.SpreadsheetID == "" {
			return nil, fmt.Errorf("sheets: spreadsheet id is required")
		}
		values = &serviceValues{svc: opts.Service, spreadsheetID: opts.SpreadsheetID}
	}
	return &Appender{
		values: values,
		sheet:  opts.SheetName,
		header: opts.Header,
	}, nil
}

// a1 qualifies an A1 range with the worksheet name, if any.
func (a *Appender) a1(rng string) string {
	if a.sheet == "" {
		return rng
	}
	return "'" + strings.ReplaceAll(a.sheet, "'", "''") + "'!" + rng
}

// Header returns the configured column titles.
func (a *Appender) Header() []string {
	return append([]string(nil), a.header...)
}

// CurrentHeader returns row 1 as it is in the sheet now.
func (a *Appender) CurrentHeader(ctx context.Context) ([]string, error) {
	row, err := a.values.FirstRow(ctx, a.a1("1:1"))
	if err != nil {
		return nil, fmt.Errorf("sheets: read header: %w", err)
	}
	return row, nil
}

// EnsureHeader writes the header row if row 1 is empty. An existing header
// is never rewritten; a column count mismatch is logged and reported as
// wrote=false.
func (a *Appender) EnsureHeader(ctx context.Context) (wrote bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureHeaderLocked(ctx)
}

func (a *Appender) ensureHeaderLocked(ctx context.Context) (bool, error) {
	current, err := a.CurrentHeader(ctx)
	if err != nil {
		return false, err
	}
	if len(current) == 0 {
		if err := a.values.Update(ctx, a.a1("A1"), a.header); err != nil {
			return false, fmt.Errorf("sheets: write header: %w", err)
		}
		a.headerChecked = true
		log.Printf("sheets: wrote header (%d columns)", len(a.header))
		return true, nil
	}
	if len(current) != len(a.header) {
		log.Printf("sheets: header has %d columns, expected %d; leaving it unchanged", len(current), len(a.header))
	}
	a.headerChecked = true
	return false, nil
}

// Append adds one row after the last row with data. The header is checked
// once per process before the first append; the append itself runs outside
// the lock so concurrent reports do not wait on each other.
func (a *Appender) Append(ctx context.Context, row []string) error {
	if err := a.checkHeaderOnce(ctx); err != nil {
		return err
	}
	if err := a.values.Append(ctx, a.a1("A1"), row); err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}
	return nil
}

func (a *Appender) checkHeaderOnce(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.headerChecked {
		return nil
	}
	_, err := a.ensureHeaderLocked(ctx)
	return err
}
