package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"geoetl/internal/census"
	"geoetl/internal/columns"
	"geoetl/internal/config"
	"geoetl/internal/datasource"
	"geoetl/internal/datasource/file"
	"geoetl/internal/datasource/httpds"
	"geoetl/internal/geography"
	"geoetl/internal/layer"
	"geoetl/internal/metrics"
	"geoetl/internal/pipeline"
	"geoetl/internal/storage"
)

// Function variables used as test seams.
var (
	newStoreFn    = storage.New
	newSourceFn   = newSource
	loadColumnsFn = config.LoadColumns
)

// summary counts finished layers by outcome.
type summary struct {
	loaded, skipped, failed int
}

func exitCode(s summary, err error) int {
	switch {
	case err != nil:
		log.Printf("geoload: aborted: %v", err)
		return 2
	case s.failed > 0:
		return 1
	}
	return 0
}

// newSource picks the layer source. singleFile overrides the run file.
func newSource(run config.Run, singleFile string) (datasource.Source, error) {
	if singleFile != "" {
		return file.NewLocal(singleFile), nil
	}
	switch run.Source.Kind {
	case "file":
		return file.NewDir(run.Source.File.Dir), nil
	case "http":
		return httpds.FromConfig(run.Source.HTTP)
	}
	return nil, fmt.Errorf("unsupported source.kind=%s", run.Source.Kind)
}

// runner holds what every layer of a run shares.
type runner struct {
	run      config.Run
	store    storage.Store
	src      datasource.Source
	registry config.Registry
	catalog  storage.Catalog
	columns  map[string][]config.ColumnSpec // by year
}

// execute processes jurisdictions × levels × years sequentially. The
// returned error is non-nil only when the run was aborted.
func execute(ctx context.Context, run config.Run, singleFile string) (summary, error) {
	var sum summary

	if singleFile != "" {
		k, err := singleFileKey(singleFile)
		if err != nil {
			return sum, err
		}
		log.Printf("geoload: -file drives the run: fips=%s level=%s year=%s", k.FIPS, k.Level, k.Year)
		run.Jurisdictions, run.Levels, run.Years = []string{k.FIPS}, []string{k.Level}, []string{k.Year}
	}

	src, err := newSourceFn(run, singleFile)
	if err != nil {
		return sum, fmt.Errorf("init source: %w", err)
	}

	store, err := newStoreFn(ctx, storage.Config{
		Kind:      run.Storage.Kind,
		DSN:       run.Storage.DB.DSN,
		Schema:    run.Storage.DB.Schema,
		BatchSize: run.Storage.DB.BatchSize,
	})
	if err != nil {
		return sum, fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	r := &runner{
		run:      run,
		store:    store,
		src:      src,
		registry: config.DefaultRegistry().Merge(run.Registry),
		columns:  map[string][]config.ColumnSpec{},
	}
	if err := r.prepare(ctx); err != nil {
		return sum, err
	}

	levels := canonicalLevels(run.Levels)
	for _, fips := range run.Jurisdictions {
		for _, level := range levels {
			for _, year := range run.Years {
				if err := ctx.Err(); err != nil {
					return sum, err
				}
				status, err := r.layer(ctx, datasource.Key{FIPS: fips, Level: level, Year: year})
				metrics.RecordLayer(run.Job, level, status)
				switch {
				case err == nil && status == "skipped":
					sum.skipped++
				case err == nil:
					sum.loaded++
				case geography.IsFatal(err):
					return sum, fmt.Errorf("fips=%s level=%s year=%s: %w", fips, level, year, err)
				default:
					sum.failed++
					metrics.RecordRow(run.Job, "failed_layers", 1)
					log.Printf("geoload: FAILED fips=%s level=%s year=%s: %v", fips, level, year, err)
				}
			}
		}
	}
	return sum, nil
}

// singleFileKey reads the layer a cached file holds from its name. The file
// is only trusted for the layer it was cached as.
func singleFileKey(path string) (datasource.Key, error) {
	fn, err := datasource.ParseFileName(filepath.Base(path))
	if err != nil {
		return datasource.Key{}, fmt.Errorf("-file %s: %w", path, err)
	}
	k := fn.Key
	if lv, err := geography.ParseLevel(k.Level); err == nil {
		k.Level = lv.String()
	}
	return k, nil
}

// canonicalLevels maps level names to their canonical spelling so the
// registry, the cache and the pipeline agree. Unknown names pass through
// and fail their layers.
func canonicalLevels(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n
		if lv, err := geography.ParseLevel(n); err == nil {
			out[i] = lv.String()
		}
	}
	return out
}

// prepare renders the column files and, with auto_create_table, creates the
// tables and registers every target column.
func (r *runner) prepare(ctx context.Context) error {
	var targets []config.ColumnSpec
	for _, year := range r.run.Years {
		specs, err := loadColumnsFn(r.run.Columns, year)
		if err != nil {
			return err
		}
		r.columns[year] = specs
		targets = append(targets, specs...)
	}

	if r.run.Storage.DB.AutoCreateTable {
		if err := r.store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		if err := r.store.DefineColumns(ctx, columns.Targets(targets)); err != nil {
			return fmt.Errorf("define columns: %w", err)
		}
	}

	cat, err := r.store.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	r.catalog = cat
	return nil
}

// layer ingests one layer and reports "loaded" or "skipped", or "failed"
// with the cause.
func (r *runner) layer(ctx context.Context, k datasource.Key) (string, error) {
	in := pipeline.Input{
		Job:          r.run.Job,
		Namespace:    r.run.Namespace,
		Jurisdiction: k.FIPS,
		Level:        k.Level,
		Year:         k.Year,
		Columns:      r.columns[k.Year],
		Catalog:      r.catalog,
		Registry:     r.registry,
	}

	if !r.registry.Missing(k.FIPS, k.Level, k.Year) {
		l, loc, hash, err := r.read(ctx, k)
		if err != nil {
			return "failed", err
		}
		in.Layer, in.SourceURL, in.ContentHash = l, loc, hash
	}

	res, err := pipeline.Run(ctx, in)
	if err != nil {
		return "failed", err
	}
	if res.Skipped {
		log.Printf("geoload: WARNING fips=%s level=%s year=%s is a known missing dataset; skipped", k.FIPS, k.Level, k.Year)
		return "skipped", nil
	}

	if _, err := storage.Load(ctx, r.store, res.Batch()); err != nil {
		return "failed", err
	}
	return "loaded", nil
}

// read opens and decodes one layer. The returned location is the published
// TIGER/Line URL when one is known, otherwise where the bytes came from.
func (r *runner) read(ctx context.Context, k datasource.Key) (*layer.Layer, string, string, error) {
	o, err := r.src.Open(ctx, k)
	if err != nil {
		return nil, "", "", err
	}
	defer o.Body.Close()

	l, hash, err := layer.ReadGeoJSON(o.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("%s: %w", o.Location, err)
	}
	if o.Hash != "" && o.Hash != hash {
		return nil, "", "", fmt.Errorf("%s: content sha256 %s does not match file name", o.Location, hash)
	}

	loc := o.Location
	if v, err := geography.NewVintage(k.Level, k.Year); err == nil {
		if u, err := census.LayerURL(v, k.FIPS); err == nil {
			loc = u
		} else if !errors.Is(err, census.ErrNoURL) {
			return nil, "", "", err
		}
	}
	return l, loc, hash, nil
}
