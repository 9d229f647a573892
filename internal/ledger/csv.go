package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/abduss/stopsurvey/internal/naming"
	"github.com/abduss/stopsurvey/internal/objectstore"
)

const csvContentType = "text/csv"

// CSV keeps each ledger as a CSV blob in a versioned object store. Every write is a
// read-modify-write guarded by the blob's version marker.
type CSV struct {
	blobs     objectstore.BlobStore
	versioned *objectstore.Versioned
	prefix    string
}

// NewCSV stores ledgers under prefix in blobs, retrying stale writes under policy.
func NewCSV(blobs objectstore.BlobStore, policy objectstore.RetryPolicy, prefix string) *CSV {
	return &CSV{
		blobs:     blobs,
		versioned: objectstore.NewVersioned(blobs, policy),
		prefix:    strings.Trim(prefix, "/"),
	}
}

func (c *CSV) EnsureTable(ctx context.Context, name string, header []string) (Table, error) {
	table := Table{Name: name, Header: append([]string(nil), header...)}
	_, err := c.versioned.Update(ctx, c.key(name), csvContentType, func(current []byte, exists bool) ([]byte, error) {
		if exists && len(bytes.TrimSpace(current)) > 0 {
			got, err := firstRecord(current)
			if err != nil {
				return nil, err
			}
			return nil, checkHeader(name, header, got)
		}
		return encodeRecords(header)
	})
	if err != nil {
		return Table{}, unavailable("ensure table", err)
	}
	return table, nil
}

func (c *CSV) AppendRow(ctx context.Context, table Table, row []string) error {
	if err := checkRow(table, row); err != nil {
		return err
	}
	_, err := c.versioned.Update(ctx, c.key(table.Name), csvContentType, func(current []byte, exists bool) ([]byte, error) {
		if !exists || len(bytes.TrimSpace(current)) == 0 {
			return encodeRecords(table.Header, row)
		}
		got, err := firstRecord(current)
		if err != nil {
			return nil, err
		}
		if err := checkHeader(table.Name, table.Header, got); err != nil {
			return nil, err
		}
		line, err := encodeRecords(row)
		if err != nil {
			return nil, err
		}

		next := make([]byte, 0, len(current)+len(line)+1)
		next = append(next, current...)
		if current[len(current)-1] != '\n' {
			next = append(next, '\n')
		}
		return append(next, line...), nil
	})
	if err != nil {
		return unavailable("append row", err)
	}
	return nil
}

func (c *CSV) ReadRows(ctx context.Context, table Table) ([][]string, error) {
	blob, err := c.blobs.Get(ctx, c.key(table.Name))
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("read rows", err)
	}

	r := csv.NewReader(bytes.NewReader(blob.Data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrLedgerUnavailable, table.Name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if err := checkHeader(table.Name, table.Header, records[0]); err != nil {
		return nil, err
	}

	rows := records[1:]
	for i := range rows {
		rows[i] = padRow(rows[i], len(table.Header))
	}
	return rows, nil
}

// Ping checks the underlying store.
func (c *CSV) Ping(ctx context.Context) error {
	return objectstore.Ping(ctx, c.blobs)
}

// key maps a ledger name to its object. Names that sanitizing would alter carry a
// short digest of the raw name so "Depot 12" and "Depot/12" stay separate files.
func (c *CSV) key(name string) string {
	file := naming.Sanitize(name)
	if file != name {
		sum := sha256.Sum256([]byte(name))
		file += "_" + hex.EncodeToString(sum[:4])
	}
	file += ".csv"
	if c.prefix == "" {
		return file
	}
	return path.Join(c.prefix, file)
}

func firstRecord(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unreadable header: %v", ErrSchemaMismatch, err)
	}
	return rec, nil
}

func encodeRecords(records ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
