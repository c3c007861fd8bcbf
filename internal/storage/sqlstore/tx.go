package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"geoetl/internal/ddl"
	"geoetl/internal/geography"
	"geoetl/internal/storage"

	"github.com/google/uuid"
)

// Tx is one import inside a database transaction.
type Tx struct {
	s  *Store
	tx *sql.Tx
	id uuid.UUID
}

func (t *Tx) ImportID() uuid.UUID { return t.id }

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.s.d.DDL.Name, err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("%s: rollback: %w", t.s.d.DDL.Name, err)
	}
	return nil
}

func (t *Tx) LoadLayer(ctx context.Context, req storage.LoadRequest) (int64, error) {
	s := t.s
	cat, err := s.catalog(ctx, t.tx)
	if err != nil {
		return 0, err
	}
	if err := storage.CheckBindings(cat, req.Columns); err != nil {
		return 0, err
	}

	var loaded int64
	if req.CreateGeo {
		rows := make([][]any, 0, len(req.Records))
		for _, rec := range req.Records {
			row, err := storage.GeographyRow(req.Namespace, req.Layer, t.id, rec)
			if err != nil {
				return 0, err
			}
			rows = append(rows, row)
		}
		if err := t.deleteEach(ctx, ddl.Geographies, req.Namespace, req.Layer, req.Records); err != nil {
			return 0, err
		}
		exprs := make([]string, len(storage.GeographyColumns))
		if s.d.GeomFromWKB != nil {
			for i, c := range storage.GeographyColumns {
				if c == "geometry" {
					exprs[i] = s.d.GeomFromWKB("%s")
				}
			}
		}
		if loaded, err = s.insertRows(ctx, t.tx, ddl.Geographies, storage.GeographyColumns, exprs, rows); err != nil {
			return loaded, err
		}
	} else {
		for _, rec := range req.Records {
			ok, err := t.exists(ctx, req.Namespace, req.Layer, rec.GeoID)
			if err != nil {
				return 0, err
			}
			if !ok {
				return 0, fmt.Errorf("%w: %s", storage.ErrUnknownGeography, rec.GeoID)
			}
		}
		loaded = int64(len(req.Records))
	}

	if len(req.Columns) == 0 {
		return loaded, nil
	}
	if err := t.deleteEach(ctx, ddl.GeoAttributes, req.Namespace, req.Layer, req.Records); err != nil {
		return loaded, err
	}
	var attrs [][]any
	for _, rec := range req.Records {
		attrs = append(attrs, storage.AttributeRows(req.Namespace, req.Layer, rec, req.Columns)...)
	}
	if _, err := s.copyRows(ctx, t.tx, ddl.GeoAttributes, storage.AttributeColumns, attrs); err != nil {
		return loaded, err
	}
	return loaded, nil
}

func (t *Tx) MapLocality(ctx context.Context, namespace, layer, locality string, geoids []string) error {
	s := t.s
	for _, id := range geoids {
		ok, err := t.exists(ctx, namespace, layer, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s in %s", storage.ErrUnknownGeography, id, locality)
		}
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE %s", s.table(ddl.LocalityMembers), s.where(1, "namespace", "layer", "locality"))
	if _, err := t.tx.ExecContext(ctx, del, namespace, layer, locality); err != nil {
		return fmt.Errorf("%s: clear locality %s: %w", s.d.DDL.Name, locality, err)
	}
	_, err := s.copyRows(ctx, t.tx, ddl.LocalityMembers, storage.MemberColumns, storage.MemberRows(namespace, layer, locality, geoids))
	return err
}

// deleteEach removes the rows of table keyed by (namespace, layer, geoid) for
// every record, so a reload replaces the previous import.
func (t *Tx) deleteEach(ctx context.Context, table, namespace, layer string, recs []geography.Record) error {
	s := t.s
	stmt, err := t.tx.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", s.table(table), s.where(1, "namespace", "layer", "geoid")))
	if err != nil {
		return fmt.Errorf("%s: prepare delete: %w", s.d.DDL.Name, err)
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, namespace, layer, r.GeoID); err != nil {
			return fmt.Errorf("%s: delete %s %s: %w", s.d.DDL.Name, table, r.GeoID, err)
		}
	}
	return nil
}

func (t *Tx) exists(ctx context.Context, namespace, layer, geoid string) (bool, error) {
	s := t.s
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.table(ddl.Geographies), s.where(1, "namespace", "layer", "geoid"))
	if err := t.tx.QueryRowContext(ctx, q, namespace, layer, geoid).Scan(&n); err != nil {
		return false, fmt.Errorf("%s: lookup %s: %w", s.d.DDL.Name, geoid, err)
	}
	return n > 0, nil
}
