// Package sqlite registers the "sqlite" storage kind: the shared sqlstore
// over the pure-Go modernc.org/sqlite driver. Geometry is stored as WKB.
package sqlite

import (
	"context"
	"database/sql"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"
	"geoetl/internal/storage/sqlstore"

	_ "modernc.org/sqlite"
)

// Dialect is the SQLite flavour of sqlstore.
var Dialect = sqlstore.Dialect{
	DDL:       ddl.SQLite,
	Driver:    "sqlite",
	Bind:      sqlstore.QuestionBind,
	MaxParams: 32766,
	OnOpen: func(ctx context.Context, db *sql.DB) error {
		// One connection: SQLite has a single writer, and ":memory:"
		// databases are per connection.
		db.SetMaxOpenConns(1)
		_, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
		return err
	},
}

// openStore is a test hook that points to sqlstore.Open by default.
var openStore = sqlstore.Open

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return openStore(ctx, Dialect, cfg)
	})
}
