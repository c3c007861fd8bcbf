package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"geoetl/internal/geography"
	"geoetl/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
)

func TestRegistration_UsesPoolHook(t *testing.T) {
	orig := newPool
	defer func() { newPool = orig }()

	want := errors.New("refused")
	var gotDSN string
	newPool = func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
		gotDSN = dsn
		return nil, want
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://geo@db/census"})
	if !errors.Is(err, want) {
		t.Fatalf("storage.New err = %v, want %v", err, want)
	}
	if gotDSN != "postgres://geo@db/census" {
		t.Fatalf("hook DSN = %q", gotDSN)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), storage.Config{DSN: "  "}); err == nil {
		t.Fatalf("Open(empty DSN) error = nil")
	}
}

func TestStoreNames(t *testing.T) {
	t.Parallel()

	s := &Store{schema: "geo"}
	if got, want := s.table("geographies"), `"geo"."geographies"`; got != want {
		t.Errorf("table = %s, want %s", got, want)
	}
	if got := s.ident("geographies"); len(got) != 2 || got.Sanitize() != `"geo"."geographies"` {
		t.Errorf("ident = %v", got)
	}

	bare := &Store{}
	if got := bare.ident("imports"); !equalIdent(got, pgx.Identifier{"imports"}) {
		t.Errorf("ident without schema = %v", got)
	}
}

func equalIdent(a, b pgx.Identifier) bool {
	return strings.Join(a, ".") == strings.Join(b, ".")
}

func TestMergeSQL(t *testing.T) {
	t.Parallel()

	stmts := mergeSQL(`"geo"."geographies"`)
	if len(stmts) != 2 {
		t.Fatalf("len(mergeSQL) = %d, want 2", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], `DELETE FROM "geo"."geographies" AS T USING "geoetl_stage_geographies" AS S`) {
		t.Errorf("delete = %s", stmts[0])
	}
	for _, want := range []string{`ST_GeomFromWKB(S."geometry", 4326)`, `S."geoid"`, `"import_id"`} {
		if !strings.Contains(stmts[1], want) {
			t.Errorf("insert %s missing %s", stmts[1], want)
		}
	}
	// Once the wrapped expression is removed no raw geometry may remain.
	bare := strings.Replace(stmts[1], `ST_GeomFromWKB(S."geometry", 4326)`, "", 1)
	if strings.Contains(bare, `S."geometry"`) {
		t.Errorf("insert copies raw WKB: %s", stmts[1])
	}
}

func TestStagingSQL(t *testing.T) {
	t.Parallel()

	stmts := stagingSQL(`"geographies"`)
	if !strings.Contains(stmts[0], "ON COMMIT DROP") || !strings.Contains(stmts[0], `LIKE "geographies"`) {
		t.Errorf("create = %s", stmts[0])
	}
	if !strings.Contains(stmts[2], "TYPE bytea") {
		t.Errorf("alter = %s", stmts[2])
	}
}

// TestIntegration_LoadRoundTrip needs a PostGIS database in TEST_PG_DSN.
func TestIntegration_LoadRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()

	s, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn, Schema: "geoetl_test"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer s.Close()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := s.DefineColumns(ctx, []string{"land_area_2020"}); err != nil {
		t.Fatalf("DefineColumns: %v", err)
	}

	rec := geography.Record{
		GeoID:          "04001942700",
		Name:           "Census Tract 9427",
		Geometry:       orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		InternalPoint:  orb.Point{0.5, 0.5},
		LandArea:       1200,
		Classification: geography.Plain,
		Attributes:     map[string]any{"ALAND20": 1200.0},
	}
	idx := geography.CountyIndex{}
	idx.Add("001", rec.GeoID)

	for i := 0; i < 2; i++ {
		st, err := storage.Load(ctx, s, storage.Batch{
			Namespace: "test",
			Layer:     "tract/2020",
			Locality:  "04",
			Notes:     "integration",
			Records:   []geography.Record{rec},
			Columns:   []storage.Binding{{Source: "ALAND20", Column: storage.Column{Name: "land_area_2020"}}},
			Counties:  idx,
		})
		if err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
		if st.Loaded != 1 || st.Localities != 1 {
			t.Fatalf("Load #%d stats = %+v", i, st)
		}
	}

	pg := s.(*Store)
	var n int
	if err := pg.pool.QueryRow(ctx, `SELECT count(*) FROM "geoetl_test"."geographies" WHERE "namespace" = 'test'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("geographies = %d after reload, want 1", n)
	}
}
