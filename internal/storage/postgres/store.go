// Package postgres implements the "postgres" storage kind with pgx v5 and
// PostGIS. Geography rows are COPYed as WKB into a transaction-scoped staging
// table and moved into place with ST_GeomFromWKB; attribute and locality rows
// are COPYed directly.
package postgres

import (
	"context"
	"fmt"
	"log"
	"strings"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newPool is a test hook that points to pgxpool.New by default.
var newPool = pgxpool.New

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg)
	})
}

// Store is a PostGIS-backed storage.Store.
type Store struct {
	pool      *pgxpool.Pool
	schema    string
	batchSize int
}

var _ storage.Store = (*Store)(nil)

// Open connects a pgx pool and verifies it with a ping.
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := newPool(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = storage.DefaultBatchSize
	}
	return &Store{pool: pool, schema: cfg.Schema, batchSize: bs}, nil
}

func (s *Store) Close() { s.pool.Close() }

// table returns the quoted, schema-qualified name of a store table.
func (s *Store) table(name string) string {
	return ddl.Postgres.QuoteFQN(ddl.Postgres.Table(s.schema, name))
}

// ident splits a store table name into a pgx.Identifier for CopyFrom.
func (s *Store) ident(name string) pgx.Identifier {
	if s.schema == "" {
		return pgx.Identifier{name}
	}
	return pgx.Identifier{s.schema, name}
}

// EnsureSchema installs PostGIS, the schema and the store tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{"CREATE EXTENSION IF NOT EXISTS postgis"}
	if s.schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+ddl.Postgres.Quote(s.schema))
	}
	tables, err := ddl.Statements(ddl.Postgres, s.schema)
	if err != nil {
		return err
	}
	stmts = append(stmts, tables...)
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	log.Printf("postgres: schema ready schema=%q tables=%d", s.schema, len(tables))
	return nil
}

func (s *Store) Catalog(ctx context.Context) (storage.Catalog, error) {
	rows, err := s.pool.Query(ctx, `SELECT "name" FROM `+s.table(ddl.Columns))
	if err != nil {
		return nil, fmt.Errorf("postgres: read catalog: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: read catalog: %w", err)
	}
	return storage.NewCatalog(names...), nil
}

func (s *Store) DefineColumns(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s ("name") SELECT unnest($1::text[]) ON CONFLICT DO NOTHING`, s.table(ddl.Columns))
	if _, err := s.pool.Exec(ctx, q, names); err != nil {
		return fmt.Errorf("postgres: define columns: %w", err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context, namespace, notes string) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	id := uuid.New()
	q := fmt.Sprintf(`INSERT INTO %s ("id", "namespace", "notes") VALUES ($1, $2, $3)`, s.table(ddl.Imports))
	if _, err := tx.Exec(ctx, q, id.String(), namespace, notes); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("postgres: record import: %w", err)
	}
	return &Tx{s: s, tx: tx, id: id}, nil
}
