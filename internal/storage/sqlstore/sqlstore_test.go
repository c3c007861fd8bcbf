package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"geoetl/internal/ddl"
	"geoetl/internal/geography"
	"geoetl/internal/storage"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"
)

// testDialect is SQLite with a tiny parameter cap and a geometry wrapper,
// so batching and placeholder wrapping are both exercised.
func testDialect() Dialect {
	return Dialect{
		DDL:         ddl.SQLite,
		Driver:      "sqlite",
		Bind:        QuestionBind,
		GeomFromWKB: func(bind string) string { return "CAST(" + bind + " AS BLOB)" },
		MaxParams:   25,
	}
}

func openTest(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	s := New(db, testDialect(), storage.Config{BatchSize: 100})
	t.Cleanup(s.Close)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestWhere(t *testing.T) {
	t.Parallel()

	pg := &Store{d: Dialect{DDL: ddl.Postgres, Bind: func(i int) string { return fmt.Sprintf("$%d", i) }}}
	if got, want := pg.where(2, "layer", "geoid"), `"layer" = $2 AND "geoid" = $3`; got != want {
		t.Errorf("where = %s, want %s", got, want)
	}
}

func TestLoadLayer_BatchesUnderParamCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)

	var recs []geography.Record
	for i := 0; i < 5; i++ {
		x := float64(i)
		recs = append(recs, geography.Record{
			GeoID:          fmt.Sprintf("0401300010%d", i),
			Geometry:       orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}},
			Classification: geography.Plain,
		})
	}

	tx, err := s.Begin(ctx, "ns", "notes")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	n, err := tx.LoadLayer(ctx, storage.LoadRequest{Namespace: "ns", Layer: "tract/2020", Records: recs, CreateGeo: true})
	if err != nil {
		t.Fatalf("LoadLayer: %v", err)
	}
	if n != 5 {
		t.Fatalf("loaded = %d, want 5", n)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM "geographies" WHERE "name" IS NULL`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Fatalf("rows = %d, want 5", count)
	}
}

func TestDefineColumns_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)
	for i := 0; i < 2; i++ {
		if err := s.DefineColumns(ctx, []string{"land_area", "water_area"}); err != nil {
			t.Fatalf("DefineColumns #%d: %v", i, err)
		}
	}
	cat, err := s.catalog(ctx, s.db)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if got := strings.Join(cat.Names(), ","); got != "land_area,water_area" {
		t.Fatalf("catalog = %s", got)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), testDialect(), storage.Config{}); err == nil {
		t.Fatalf("Open(empty DSN) error = nil")
	}
}
