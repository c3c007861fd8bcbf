// Package mssql registers the "mssql" storage kind. Geography rows use
// multi-row INSERT with geometry::STGeomFromWKB; attribute and locality rows
// go through the driver's bulk copy.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"
	"geoetl/internal/storage/sqlstore"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Dialect is the SQL Server flavour of sqlstore.
var Dialect = sqlstore.Dialect{
	DDL:    ddl.MSSQL,
	Driver: "sqlserver",
	Bind:   func(i int) string { return fmt.Sprintf("@p%d", i) },
	GeomFromWKB: func(bind string) string {
		return "geometry::STGeomFromWKB(" + bind + ", 4326)"
	},
	// SQL Server rejects statements with more than 2100 parameters.
	MaxParams: 2000,
	Copy:      bulkCopy,
}

// openStore is a test hook that points to sqlstore.Open by default.
var openStore = sqlstore.Open

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		// Validate DSN early to fail fast on obvious mistakes.
		if _, err := msdsn.Parse(cfg.DSN); err != nil {
			return nil, fmt.Errorf("mssql dsn: %w", err)
		}
		return openStore(ctx, Dialect, cfg)
	})
}

// bulkCopy streams rows into table with the TDS bulk load API inside tx.
func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	return res.RowsAffected()
}
