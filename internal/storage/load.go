package storage

import (
	"context"
	"fmt"
	"log"
	"sort"

	"geoetl/internal/geography"
	"geoetl/internal/metrics"
	"geoetl/pkg/records"

	"github.com/google/uuid"
)

// Batch is everything needed to load one processed layer.
type Batch struct {
	Job       string
	Namespace string
	Layer     string
	Locality  string
	Notes     string
	Records   []geography.Record
	Columns   []Binding
	// Counties maps county codes to the geoids they contain. Each county is
	// mapped to the locality Locality+county.
	Counties geography.CountyIndex
}

// Stats summarizes a finished load.
type Stats struct {
	ImportID   uuid.UUID
	Loaded     int64
	Localities int
}

// Load writes b inside one transaction: begin, load the layer, map every
// county locality, commit. Any error rolls the transaction back.
func Load(ctx context.Context, s Store, b Batch) (st Stats, err error) {
	tx, err := s.Begin(ctx, b.Namespace, b.Notes)
	if err != nil {
		return st, fmt.Errorf("begin import: %w", err)
	}
	st.ImportID = tx.ImportID()

	defer func() {
		if err == nil {
			return
		}
		if rerr := tx.Rollback(ctx); rerr != nil {
			log.Printf("storage: rollback import=%s err=%v", st.ImportID, rerr)
		}
	}()

	st.Loaded, err = tx.LoadLayer(ctx, LoadRequest{
		Namespace: b.Namespace,
		Layer:     b.Layer,
		Locality:  b.Locality,
		Records:   b.Records,
		Columns:   b.Columns,
		CreateGeo: true,
	})
	if err != nil {
		return st, fmt.Errorf("load layer %s: %w", b.Layer, err)
	}

	for _, county := range b.Counties.Counties() {
		locality := b.Locality + county
		if err = tx.MapLocality(ctx, b.Namespace, b.Layer, locality, b.Counties.Members(county)); err != nil {
			return st, fmt.Errorf("map locality %s: %w", locality, err)
		}
		st.Localities++
	}

	if err = tx.Commit(ctx); err != nil {
		return st, fmt.Errorf("commit import: %w", err)
	}

	metrics.RecordRow(b.Job, "loaded", st.Loaded)
	log.Printf("storage: import=%s layer=%s locality=%s loaded=%d localities=%d",
		st.ImportID, b.Layer, b.Locality, st.Loaded, st.Localities)
	return st, nil
}

// GeographyColumns is the column order of GeographyRow.
var GeographyColumns = []string{
	"namespace", "layer", "geoid", "name", "geometry",
	"internal_point_lon", "internal_point_lat",
	"land_area", "water_area", "classification", "import_id",
}

// AttributeColumns is the column order of AttributeRows.
var AttributeColumns = []string{"namespace", "layer", "geoid", "column_name", "value"}

// MemberColumns is the column order of MemberRows.
var MemberColumns = []string{"namespace", "layer", "locality", "geoid"}

// GeographyRow flattens a record for GeographyColumns. The geometry is
// encoded as WKB.
func GeographyRow(namespace, layer string, importID uuid.UUID, rec geography.Record) ([]any, error) {
	wkbBytes, err := geography.MarshalWKB(rec.Geometry)
	if err != nil {
		return nil, &geography.RowError{GeoID: rec.GeoID, Column: "geometry", Err: err}
	}
	var name any
	if rec.Name != "" {
		name = rec.Name
	}
	return []any{
		namespace, layer, rec.GeoID, name, wkbBytes,
		rec.InternalPoint.Lon(), rec.InternalPoint.Lat(),
		rec.LandArea, rec.WaterArea, string(rec.Classification), importID.String(),
	}, nil
}

// AttributeRows flattens the bound attribute values of rec for
// AttributeColumns. Values are stored as text; missing values become NULL.
func AttributeRows(namespace, layer string, rec geography.Record, bindings []Binding) [][]any {
	out := make([][]any, 0, len(bindings))
	for _, b := range bindings {
		var v any
		if raw, ok := rec.Attributes[b.Source]; ok && raw != nil {
			v = records.Text(raw)
		}
		out = append(out, []any{namespace, layer, rec.GeoID, b.Column.Name, v})
	}
	return out
}

// MemberRows builds MemberColumns rows for one locality. geoids are sorted.
func MemberRows(namespace, layer, locality string, geoids []string) [][]any {
	ids := append([]string(nil), geoids...)
	sort.Strings(ids)
	out := make([][]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, []any{namespace, layer, locality, id})
	}
	return out
}

// CheckBindings verifies every binding resolves in cat.
func CheckBindings(cat Catalog, bindings []Binding) error {
	for _, b := range bindings {
		if _, ok := cat.Column(b.Column.Name); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, b.Column.Name)
		}
	}
	return nil
}
