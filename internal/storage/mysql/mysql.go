// Package mysql registers the "mysql" storage kind on the shared sqlstore.
// Geometry is written with ST_GeomFromWKB.
package mysql

import (
	"context"
	"fmt"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"
	"geoetl/internal/storage/sqlstore"

	gomysql "github.com/go-sql-driver/mysql"
)

// Dialect is the MySQL flavour of sqlstore.
var Dialect = sqlstore.Dialect{
	DDL:    ddl.MySQL,
	Driver: "mysql",
	Bind:   sqlstore.QuestionBind,
	GeomFromWKB: func(bind string) string {
		return "ST_GeomFromWKB(" + bind + ")"
	},
	MaxParams: 65535,
}

// openStore is a test hook that points to sqlstore.Open by default.
var openStore = sqlstore.Open

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		dsn, err := normalizeDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		cfg.DSN = dsn
		return openStore(ctx, Dialect, cfg)
	})
}

// normalizeDSN parses a go-sql-driver DSN, enables time parsing and defaults
// the charset to utf8mb4.
func normalizeDSN(dsn string) (string, error) {
	c, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	c.ParseTime = true
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	if _, ok := c.Params["charset"]; !ok {
		c.Params["charset"] = "utf8mb4"
	}
	return c.FormatDSN(), nil
}
