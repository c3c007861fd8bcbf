// Package sqlstore implements storage.Store over database/sql. The SQLite,
// SQL Server and MySQL backends share it and differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"

	"github.com/google/uuid"
)

// Dialect captures what differs between database/sql backends.
type Dialect struct {
	DDL    ddl.Dialect
	Driver string
	// Bind returns the placeholder for the i-th (1-based) parameter.
	Bind func(i int) string
	// GeomFromWKB wraps a WKB placeholder in the backend's geometry
	// constructor. nil stores the WKB bytes as-is.
	GeomFromWKB func(bind string) string
	// MaxParams caps parameters per statement. Zero means no cap.
	MaxParams int
	// Copy bulk-inserts rows into a table without geometry. nil uses
	// multi-row INSERT.
	Copy func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error)
	// OnOpen runs once after the pool is opened.
	OnOpen func(ctx context.Context, db *sql.DB) error
}

// QuestionBind is the "?" placeholder used by SQLite and MySQL.
func QuestionBind(int) string { return "?" }

// Store is a storage.Store backed by a *sql.DB.
type Store struct {
	db        *sql.DB
	d         Dialect
	schema    string
	batchSize int
}

var _ storage.Store = (*Store)(nil)

// Open connects with d.Driver and pings the database.
func Open(ctx context.Context, d Dialect, cfg storage.Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", d.DDL.Name)
	}
	db, err := sql.Open(d.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.DDL.Name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.DDL.Name, err)
	}
	if d.OnOpen != nil {
		if err := d.OnOpen(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: init: %w", d.DDL.Name, err)
		}
	}
	return New(db, d, cfg), nil
}

// New wraps an already opened database.
func New(db *sql.DB, d Dialect, cfg storage.Config) *Store {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = storage.DefaultBatchSize
	}
	return &Store{db: db, d: d, schema: cfg.Schema, batchSize: bs}
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) table(name string) string {
	return s.d.DDL.QuoteFQN(s.d.DDL.Table(s.schema, name))
}

func (s *Store) q(id string) string { return s.d.DDL.Quote(id) }

// where renders "a = ? AND b = ?" starting at placeholder from.
func (s *Store) where(from int, cols ...string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = s.q(c) + " = " + s.d.Bind(from+i)
	}
	return strings.Join(parts, " AND ")
}

// EnsureSchema creates the five data store tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts, err := ddl.Statements(s.d.DDL, s.schema)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: ensure schema: %w", s.d.DDL.Name, err)
		}
	}
	log.Printf("%s: schema ready tables=%d", s.d.DDL.Name, len(stmts))
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Catalog(ctx context.Context) (storage.Catalog, error) {
	return s.catalog(ctx, s.db)
}

func (s *Store) catalog(ctx context.Context, q queryer) (storage.MapCatalog, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+s.q("name")+" FROM "+s.table(ddl.Columns))
	if err != nil {
		return nil, fmt.Errorf("%s: read catalog: %w", s.d.DDL.Name, err)
	}
	defer rows.Close()

	cat := storage.MapCatalog{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cat[name] = storage.Column{Name: name}
	}
	return cat, rows.Err()
}

func (s *Store) DefineColumns(ctx context.Context, names []string) error {
	cat, err := s.catalog(ctx, s.db)
	if err != nil {
		return err
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table(ddl.Columns), s.q("name"), s.d.Bind(1))
	for _, n := range names {
		if _, ok := cat[n]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, insert, n); err != nil {
			return fmt.Errorf("%s: define column %s: %w", s.d.DDL.Name, n, err)
		}
		cat[n] = storage.Column{Name: n}
	}
	return nil
}

func (s *Store) Begin(ctx context.Context, namespace, notes string) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", s.d.DDL.Name, err)
	}
	id := uuid.New()
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s, %s, %s)",
		s.table(ddl.Imports), s.q("id"), s.q("namespace"), s.q("notes"),
		s.d.Bind(1), s.d.Bind(2), s.d.Bind(3))
	if _, err := tx.ExecContext(ctx, insert, id.String(), namespace, notes); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: record import: %w", s.d.DDL.Name, err)
	}
	return &Tx{s: s, tx: tx, id: id}, nil
}

// insertRows writes rows with multi-row INSERT statements. exprs optionally
// wraps each column's placeholder (nil entries use the bare placeholder).
func (s *Store) insertRows(ctx context.Context, tx *sql.Tx, name string, columns, exprs []string, rows [][]any) (int64, error) {
	batch := s.batchSize
	if s.d.MaxParams > 0 && batch*len(columns) > s.d.MaxParams {
		batch = max(1, s.d.MaxParams/len(columns))
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.q(c)
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.table(name), strings.Join(quoted, ", "))

	return storage.LoadBatches(ctx, name, columns, rows, batch, func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
		var sb strings.Builder
		sb.WriteString(head)
		args := make([]any, 0, len(chunk)*len(cols))
		for r, row := range chunk {
			if len(row) != len(cols) {
				return 0, fmt.Errorf("%s: row length %d != columns length %d", s.d.DDL.Name, len(row), len(cols))
			}
			if r > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for c := range cols {
				if c > 0 {
					sb.WriteString(", ")
				}
				bind := s.d.Bind(len(args) + 1)
				if exprs != nil && exprs[c] != "" {
					bind = fmt.Sprintf(exprs[c], bind)
				}
				sb.WriteString(bind)
				args = append(args, row[c])
			}
			sb.WriteByte(')')
		}
		res, err := tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return 0, fmt.Errorf("%s: insert into %s: %w", s.d.DDL.Name, name, err)
		}
		return res.RowsAffected()
	})
}

func (s *Store) copyRows(ctx context.Context, tx *sql.Tx, name string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if s.d.Copy != nil {
		return storage.LoadBatches(ctx, name, columns, rows, s.batchSize, func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
			return s.d.Copy(ctx, tx, s.table(name), cols, chunk)
		})
	}
	return s.insertRows(ctx, tx, name, columns, nil, rows)
}

// DB exposes the underlying pool for diagnostics and tests.
func (s *Store) DB() *sql.DB { return s.db }
