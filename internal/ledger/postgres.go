package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const repoTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS ledger_tables (
    name       TEXT PRIMARY KEY,
    header     TEXT[] NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS ledger_rows (
    id          BIGSERIAL PRIMARY KEY,
    table_name  TEXT NOT NULL REFERENCES ledger_tables (name),
    cells       TEXT[] NOT NULL,
    appended_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ledger_rows_table_name_id_idx ON ledger_rows (table_name, id);`

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Postgres stores ledgers as rows of a shared table keyed by ledger name.
type Postgres struct {
	db pgxDB
}

// NewPostgres builds a ledger over a pgx pool.
func NewPostgres(db pgxDB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the ledger tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := p.db.Exec(ctx, schema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func (p *Postgres) EnsureTable(ctx context.Context, name string, header []string) (Table, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO ledger_tables (name, header)
VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING;`
	if _, err := p.db.Exec(ctx, query, name, header); err != nil {
		return Table{}, unavailable("ensure table", err)
	}

	var stored []string
	if err := p.db.QueryRow(ctx, `SELECT header FROM ledger_tables WHERE name = $1;`, name).Scan(&stored); err != nil {
		return Table{}, unavailable("read header", err)
	}
	if err := checkHeader(name, header, stored); err != nil {
		return Table{}, err
	}
	return Table{Name: name, Header: append([]string(nil), header...)}, nil
}

func (p *Postgres) AppendRow(ctx context.Context, table Table, row []string) error {
	if err := checkRow(table, row); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO ledger_rows (table_name, cells)
VALUES ($1, $2);`
	if _, err := p.db.Exec(ctx, query, table.Name, row); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: table %q was never ensured", ErrSchemaMismatch, table.Name)
		}
		return unavailable("append row", err)
	}
	return nil
}

func (p *Postgres) ReadRows(ctx context.Context, table Table) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT cells
FROM ledger_rows
WHERE table_name = $1
ORDER BY id;`

	rows, err := p.db.Query(ctx, query, table.Name)
	if err != nil {
		return nil, unavailable("read rows", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, unavailable("scan row", err)
		}
		out = append(out, padRow(cells, len(table.Header)))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate rows", err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()
	if err := p.db.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
