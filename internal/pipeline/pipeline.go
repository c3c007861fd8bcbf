// Package pipeline turns one raw census layer (one jurisdiction, one level,
// one vintage year) into canonical geography records, a county membership
// index and the column bindings needed to load them.
//
// Run performs no I/O. The caller reads the layer, hands it over together
// with the registries and the store catalog, and passes Result.Batch to
// storage.Load. The first failing stage aborts the layer; there is no partial
// result.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb"

	"geoetl/internal/columns"
	"geoetl/internal/config"
	"geoetl/internal/geography"
	"geoetl/internal/layer"
	"geoetl/internal/metrics"
	"geoetl/internal/storage"
	"geoetl/internal/transformer"
	"geoetl/internal/transformer/builtin"
	"geoetl/pkg/records"
)

// Input is one layer and everything needed to process it.
type Input struct {
	Job       string
	Namespace string

	// Jurisdiction is the two-digit state FIPS code.
	Jurisdiction string
	Level        string
	Year         string

	// Layer is rewritten in place. A read-only layer fails the run with
	// geography.ErrEnvironment.
	Layer *layer.Layer

	// SourceURL and ContentHash go into the import notes.
	SourceURL   string
	ContentHash string

	Columns  []config.ColumnSpec
	Catalog  storage.Catalog
	Registry config.Registry
}

// Result is the processed layer.
type Result struct {
	// Skipped is set when the dataset is registered as unpublished. All
	// other fields are then empty.
	Skipped bool

	Vintage geography.Vintage

	// Records are in layer order; geoids are unique.
	Records []geography.Record
	Index   geography.CountyIndex
	Columns []storage.Binding
	Notes   string

	byID         map[string]int
	jurisdiction string
	job          string
	namespace    string
}

// Lookup returns the record with geoid, if any.
func (r *Result) Lookup(geoid string) (geography.Record, bool) {
	i, ok := r.byID[geoid]
	if !ok {
		return geography.Record{}, false
	}
	return r.Records[i], true
}

// Batch builds the storage batch for r. The layer is keyed "<level>/<year>"
// and each county maps to the locality jurisdiction+county.
func (r *Result) Batch() storage.Batch {
	return storage.Batch{
		Job:       r.job,
		Namespace: r.namespace,
		Layer:     r.Vintage.String(),
		Locality:  r.jurisdiction,
		Notes:     r.Notes,
		Records:   r.Records,
		Columns:   r.Columns,
		Counties:  r.Index,
	}
}

// Notes formats the provenance line stored with every import.
func Notes(v geography.Vintage, sourceURL, hash string) string {
	return fmt.Sprintf("Loaded by ETL pipeline geoetl from %s U.S. Census %s shapefile %s (SHA256: %s)",
		v.Year, v.Level, sourceURL, hash)
}

// Run processes in.
func Run(ctx context.Context, in Input) (*Result, error) {
	v, err := geography.NewVintage(in.Level, in.Year)
	if err != nil {
		return nil, err
	}
	res := &Result{Vintage: v, jurisdiction: in.Jurisdiction, job: in.Job, namespace: in.Namespace}

	if in.Registry.Missing(in.Jurisdiction, v.Level.String(), v.Year) {
		log.Printf("pipeline: skip missing dataset fips=%s layer=%s", in.Jurisdiction, v)
		metrics.RecordRow(in.Job, "skipped_layers", 1)
		res.Skipped = true
		res.Index = geography.CountyIndex{}
		return res, nil
	}
	if in.Layer == nil {
		return nil, fmt.Errorf("pipeline: no layer for fips=%s layer=%s", in.Jurisdiction, v)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	l := in.Layer
	metrics.RecordRow(in.Job, "processed", int64(l.Len()))

	dedup := &builtin.DeDup{Job: in.Job}
	counties := &builtin.CountyIndex{Vintage: v, Jurisdiction: in.Jurisdiction}
	collisions := &builtin.ResolveCollisions{Vintage: v, NameExceptions: in.Registry.Exceptions(), Job: in.Job}
	chain := transformer.Chain{
		builtin.Sanitize{},
		dedup,
		counties,
		builtin.NormalizeGeoID{Vintage: v, Jurisdiction: in.Jurisdiction},
		collisions,
		builtin.InternalPoints{Vintage: v},
	}
	if err := chain.Apply(in.Job, l); err != nil {
		return nil, err
	}

	res.Records, err = buildRecords(v, l)
	if err != nil {
		return nil, fmt.Errorf("build records: %w", err)
	}
	res.byID = make(map[string]int, len(res.Records))
	for i, rec := range res.Records {
		res.byID[rec.GeoID] = i
	}
	res.Index = counties.Index

	cat := in.Catalog
	if cat == nil {
		cat = storage.NewCatalog()
	}
	res.Columns, err = columns.Map(in.Columns, l.Has, cat)
	if err != nil {
		return nil, fmt.Errorf("map columns: %w", err)
	}
	res.Notes = Notes(v, in.SourceURL, in.ContentHash)

	log.Printf("pipeline: fips=%s layer=%s records=%d counties=%d dropped=%d merged=%d in %s",
		in.Jurisdiction, v, len(res.Records), res.Index.Len(), dedup.Dropped, collisions.Merged,
		time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

// buildRecords converts the transformed rows into records. Attributes keep
// the raw source columns for column mapping.
func buildRecords(v geography.Vintage, l *layer.Layer) ([]geography.Record, error) {
	idCol, nameCol := v.IDColumn(), v.NameColumn()
	seen := make(map[string]struct{}, l.Len())
	out := make([]geography.Record, 0, l.Len())

	for _, r := range l.Rows() {
		geoid, ok := r.Values.String(idCol)
		if !ok || geoid == "" {
			return nil, &geography.RowError{Column: idCol, Value: r.Values[idCol], Err: fmt.Errorf("identifier is missing")}
		}
		if _, dup := seen[geoid]; dup {
			return nil, &geography.RowError{GeoID: geoid, Err: geography.ErrDuplicateGeoID}
		}
		seen[geoid] = struct{}{}

		land, err := optionalFloat(geoid, v.LandColumn(), r.Values)
		if err != nil {
			return nil, err
		}
		water, err := optionalFloat(geoid, v.WaterColumn(), r.Values)
		if err != nil {
			return nil, err
		}
		name, _ := r.Values.String(nameCol)
		class, _ := r.Values.String(builtin.ClassColumn)
		pt, _ := r.Values[builtin.PointColumn].(orb.Point)

		attrs := make(map[string]any, len(r.Values))
		for k, val := range r.Values {
			if k == builtin.PointColumn || k == builtin.ClassColumn {
				continue
			}
			attrs[k] = val
		}

		out = append(out, geography.Record{
			GeoID:          geoid,
			Name:           name,
			Geometry:       r.Geometry,
			InternalPoint:  pt,
			LandArea:       land,
			WaterArea:      water,
			Classification: geography.Classification(class),
			Attributes:     attrs,
		})
	}
	return out, nil
}

// optionalFloat reads a numeric column that TIGER does not ship for every
// level. Absent is zero; present but not numeric is an error.
func optionalFloat(geoid, col string, r records.Record) (float64, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := records.Float(v)
	if !ok {
		return 0, &geography.RowError{GeoID: geoid, Column: col, Value: v, Err: geography.ErrTypeCoercion}
	}
	return f, nil
}
