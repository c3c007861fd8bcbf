package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"geoetl/internal/ddl"
	"geoetl/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const stagingTable = "geoetl_stage_geographies"

// Tx is one import inside a pgx transaction.
type Tx struct {
	s  *Store
	tx pgx.Tx
	id uuid.UUID
}

func (t *Tx) ImportID() uuid.UUID { return t.id }

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

func (t *Tx) copy(ctx context.Context, ident pgx.Identifier, columns []string, rows [][]any) (int64, error) {
	return storage.LoadBatches(ctx, strings.Join(ident, "."), columns, rows, t.s.batchSize,
		func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
			n, err := t.tx.CopyFrom(ctx, ident, cols, pgx.CopyFromRows(chunk))
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Detail != "" {
					return n, fmt.Errorf("copy into %s: %s (%s)", ident.Sanitize(), pgErr.Detail, pgErr.SQLState())
				}
				return n, fmt.Errorf("copy into %s: %w", ident.Sanitize(), err)
			}
			return n, nil
		})
}

func (t *Tx) catalog(ctx context.Context) (storage.Catalog, error) {
	rows, err := t.tx.Query(ctx, `SELECT "name" FROM `+t.s.table(ddl.Columns))
	if err != nil {
		return nil, fmt.Errorf("postgres: read catalog: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return storage.NewCatalog(names...), nil
}

func (t *Tx) LoadLayer(ctx context.Context, req storage.LoadRequest) (int64, error) {
	cat, err := t.catalog(ctx)
	if err != nil {
		return 0, err
	}
	if err := storage.CheckBindings(cat, req.Columns); err != nil {
		return 0, err
	}

	geoids := make([]string, len(req.Records))
	for i, rec := range req.Records {
		geoids[i] = rec.GeoID
	}

	var loaded int64
	if req.CreateGeo {
		if loaded, err = t.loadGeographies(ctx, req); err != nil {
			return loaded, err
		}
	} else {
		if err := t.requireGeographies(ctx, req.Namespace, req.Layer, geoids); err != nil {
			return 0, err
		}
		loaded = int64(len(req.Records))
	}

	if len(req.Columns) == 0 {
		return loaded, nil
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE "namespace" = $1 AND "layer" = $2 AND "geoid" = ANY($3)`, t.s.table(ddl.GeoAttributes))
	if _, err := t.tx.Exec(ctx, del, req.Namespace, req.Layer, geoids); err != nil {
		return loaded, fmt.Errorf("postgres: clear attributes: %w", err)
	}
	var attrs [][]any
	for _, rec := range req.Records {
		attrs = append(attrs, storage.AttributeRows(req.Namespace, req.Layer, rec, req.Columns)...)
	}
	if _, err := t.copy(ctx, t.s.ident(ddl.GeoAttributes), storage.AttributeColumns, attrs); err != nil {
		return loaded, err
	}
	return loaded, nil
}

// loadGeographies COPYs rows into the staging table, replaces matching rows
// and converts the WKB to PostGIS geometry.
func (t *Tx) loadGeographies(ctx context.Context, req storage.LoadRequest) (int64, error) {
	rows := make([][]any, 0, len(req.Records))
	for _, rec := range req.Records {
		row, err := storage.GeographyRow(req.Namespace, req.Layer, t.id, rec)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	for _, stmt := range stagingSQL(t.s.table(ddl.Geographies)) {
		if _, err := t.tx.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("postgres: staging: %w", err)
		}
	}
	if _, err := t.copy(ctx, pgx.Identifier{stagingTable}, storage.GeographyColumns, rows); err != nil {
		return 0, err
	}
	for _, stmt := range mergeSQL(t.s.table(ddl.Geographies)) {
		if _, err := t.tx.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("postgres: merge geographies: %w", err)
		}
	}
	return int64(len(rows)), nil
}

// stagingSQL creates or empties the staging table. It mirrors the target
// columns but keeps geometry as bytea.
func stagingSQL(target string) []string {
	return []string{
		fmt.Sprintf(`CREATE TEMP TABLE IF NOT EXISTS %s (LIKE %s) ON COMMIT DROP`, ddl.Postgres.Quote(stagingTable), target),
		fmt.Sprintf(`TRUNCATE %s`, ddl.Postgres.Quote(stagingTable)),
		fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN "geometry" TYPE bytea USING NULL`, ddl.Postgres.Quote(stagingTable)),
	}
}

// mergeSQL replaces target rows with the staged ones.
func mergeSQL(target string) []string {
	cols := make([]string, len(storage.GeographyColumns))
	sel := make([]string, len(storage.GeographyColumns))
	for i, c := range storage.GeographyColumns {
		cols[i] = ddl.Postgres.Quote(c)
		sel[i] = "S." + cols[i]
		if c == "geometry" {
			sel[i] = `ST_GeomFromWKB(S."geometry", 4326)`
		}
	}
	stage := ddl.Postgres.Quote(stagingTable)
	return []string{
		fmt.Sprintf(`DELETE FROM %s AS T USING %s AS S WHERE T."namespace" = S."namespace" AND T."layer" = S."layer" AND T."geoid" = S."geoid"`, target, stage),
		fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s AS S`, target, strings.Join(cols, ", "), strings.Join(sel, ", "), stage),
	}
}

func (t *Tx) requireGeographies(ctx context.Context, namespace, layer string, geoids []string) error {
	q := fmt.Sprintf(`SELECT g FROM unnest($3::text[]) AS g
		WHERE NOT EXISTS (SELECT 1 FROM %s WHERE "namespace" = $1 AND "layer" = $2 AND "geoid" = g)
		LIMIT 1`, t.s.table(ddl.Geographies))
	var missing string
	err := t.tx.QueryRow(ctx, q, namespace, layer, geoids).Scan(&missing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("postgres: lookup geographies: %w", err)
	}
	return fmt.Errorf("%w: %s", storage.ErrUnknownGeography, missing)
}

func (t *Tx) MapLocality(ctx context.Context, namespace, layer, locality string, geoids []string) error {
	if err := t.requireGeographies(ctx, namespace, layer, geoids); err != nil {
		return fmt.Errorf("locality %s: %w", locality, err)
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE "namespace" = $1 AND "layer" = $2 AND "locality" = $3`, t.s.table(ddl.LocalityMembers))
	if _, err := t.tx.Exec(ctx, del, namespace, layer, locality); err != nil {
		return fmt.Errorf("postgres: clear locality %s: %w", locality, err)
	}
	_, err := t.copy(ctx, t.s.ident(ddl.LocalityMembers), storage.MemberColumns, storage.MemberRows(namespace, layer, locality, geoids))
	return err
}
