package mssql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"geoetl/internal/storage"
	"geoetl/internal/storage/sqlstore"
)

func TestRegistration_ValidatesDSN(t *testing.T) {
	orig := openStore
	defer func() { openStore = orig }()

	called := false
	openStore = func(ctx context.Context, d sqlstore.Dialect, cfg storage.Config) (*sqlstore.Store, error) {
		called = true
		return nil, errors.New("unreachable")
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://host?connection+timeout=abc"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("storage.New err = %v, want dsn error", err)
	}
	if called {
		t.Fatalf("openStore called for an invalid DSN")
	}
}

func TestRegistration_UsesOpenHook(t *testing.T) {
	orig := openStore
	defer func() { openStore = orig }()

	want := errors.New("offline")
	var got storage.Config
	openStore = func(ctx context.Context, d sqlstore.Dialect, cfg storage.Config) (*sqlstore.Store, error) {
		got = cfg
		return nil, want
	}

	cfg := storage.Config{Kind: "mssql", DSN: "sqlserver://sa:pw@localhost:1433?database=geo", Schema: "dbo"}
	if _, err := storage.New(context.Background(), cfg); !errors.Is(err, want) {
		t.Fatalf("storage.New err = %v, want %v", err, want)
	}
	if got.Schema != "dbo" || got.BatchSize != storage.DefaultBatchSize {
		t.Fatalf("hook cfg = %+v", got)
	}
}

func TestDialect(t *testing.T) {
	t.Parallel()

	if got := Dialect.Bind(3); got != "@p3" {
		t.Errorf("Bind(3) = %q, want @p3", got)
	}
	if got := Dialect.GeomFromWKB("@p5"); got != "geometry::STGeomFromWKB(@p5, 4326)" {
		t.Errorf("GeomFromWKB = %q", got)
	}
	if got := Dialect.DDL.QuoteFQN("dbo.geographies"); got != "[dbo].[geographies]" {
		t.Errorf("QuoteFQN = %q", got)
	}
}
