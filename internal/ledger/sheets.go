package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// Sheets keeps each ledger as a tab in one spreadsheet.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheets constructs a spreadsheet-backed ledger.
func NewSheets(svc *sheets.Service, spreadsheetID string) *Sheets {
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID}
}

func (s *Sheets) EnsureTable(ctx context.Context, name string, header []string) (Table, error) {
	exists, err := s.hasTab(ctx, name)
	if err != nil {
		return Table{}, err
	}
	if !exists {
		if err := s.addTab(ctx, name); err != nil {
			return Table{}, err
		}
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, headerRange(name)).Context(ctx).Do()
	if err != nil {
		return Table{}, unavailable("read header", err)
	}

	table := Table{Name: name, Header: append([]string(nil), header...)}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, headerRange(name), toValueRange(header)).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return Table{}, unavailable("write header", err)
		}
		return table, nil
	}

	if err := checkHeader(name, header, toStrings(resp.Values[0])); err != nil {
		return Table{}, err
	}
	return table, nil
}

func (s *Sheets) AppendRow(ctx context.Context, table Table, row []string) error {
	if err := checkRow(table, row); err != nil {
		return err
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteTab(table.Name)+"!A1", toValueRange(row)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return unavailable("append row", err)
	}
	return nil
}

func (s *Sheets) ReadRows(ctx context.Context, table Table) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteTab(table.Name)).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range") {
			return nil, nil
		}
		return nil, unavailable("read rows", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	if err := checkHeader(table.Name, table.Header, toStrings(resp.Values[0])); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(resp.Values)-1)
	for _, values := range resp.Values[1:] {
		rows = append(rows, padRow(toStrings(values), len(table.Header)))
	}
	return rows, nil
}

// Ping verifies the spreadsheet is reachable.
func (s *Sheets) Ping(ctx context.Context) error {
	if _, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Sheets) hasTab(ctx context.Context, name string) (bool, error) {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, unavailable("list tabs", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Sheets) addTab(ctx context.Context, name string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
		}},
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err == nil {
		return nil
	}
	// Another writer created the tab first.
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "already exists") {
		return nil
	}
	return unavailable("add tab", err)
}

func headerRange(name string) string {
	return quoteTab(name) + "!1:1"
}

func quoteTab(name string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(name, "'", "''"))
}

func toValueRange(cells []string) *sheets.ValueRange {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return &sheets.ValueRange{Values: [][]interface{}{row}}
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}
