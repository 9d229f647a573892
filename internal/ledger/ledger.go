// Package ledger appends submission rows to tabular destinations.
//
// A ledger is a named table whose first row is a fixed header. Tables are created lazily,
// the header is written once, and rows are only ever appended after existing content.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLedgerUnavailable reports an unreachable or failing destination.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrSchemaMismatch reports a header or row width that disagrees with the declared header.
	ErrSchemaMismatch = errors.New("ledger schema mismatch")
)

// Table identifies an ensured ledger and its header.
type Table struct {
	Name   string   `json:"name"`
	Header []string `json:"header"`
}

// Ledger is implemented by every destination backend.
type Ledger interface {
	// EnsureTable creates the table and header when missing and verifies the header otherwise.
	EnsureTable(ctx context.Context, name string, header []string) (Table, error)
	// AppendRow appends one row after existing content.
	AppendRow(ctx context.Context, table Table, row []string) error
	// ReadRows returns data rows in append order, header excluded.
	ReadRows(ctx context.Context, table Table) ([][]string, error)
}

// EnsureAndAppend validates the row width, ensures the table and appends the row.
func EnsureAndAppend(ctx context.Context, l Ledger, name string, header, row []string) (Table, error) {
	if err := checkRow(Table{Name: name, Header: header}, row); err != nil {
		return Table{}, err
	}
	table, err := l.EnsureTable(ctx, name, header)
	if err != nil {
		return Table{}, err
	}
	if err := l.AppendRow(ctx, table, row); err != nil {
		return table, err
	}
	return table, nil
}

func checkRow(table Table, row []string) error {
	if len(table.Header) == 0 {
		return fmt.Errorf("%w: table %q has no header", ErrSchemaMismatch, table.Name)
	}
	if len(row) != len(table.Header) {
		return fmt.Errorf("%w: table %q expects %d cells, got %d", ErrSchemaMismatch, table.Name, len(table.Header), len(row))
	}
	return nil
}

func checkHeader(name string, want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: table %q header has %d columns, want %d", ErrSchemaMismatch, name, len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: table %q column %d is %q, want %q", ErrSchemaMismatch, name, i+1, got[i], want[i])
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrSchemaMismatch) || errors.Is(err, ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}

// padRow extends short rows to width; some backends drop trailing empty cells.
func padRow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}
