package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geoetl/internal/config"
	"geoetl/internal/datasource"
	"geoetl/internal/geography"
	"geoetl/internal/storage"
	"geoetl/internal/storage/memory"
)

const columnYAML = `columns:
  - source: ALAND{{.Yr}}
    target: land_area_{{.Year}}
  - source: LSAD{{.Yr}}
    target: lsad_{{.Year}}
`

func feature(props string, x int) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{%s},"geometry":{"type":"Polygon","coordinates":[[[%d,0],[%d,0],[%d,1],[%d,1],[%d,0]]]}}`,
		props, x, x+1, x+1, x, x)
}

func collection(features ...string) string {
	return `{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`
}

// cache writes body under its cache file name and returns the hash.
func cache(t *testing.T, dir string, k datasource.Key, body string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(body))
	hash := hex.EncodeToString(sum[:])
	name := datasource.FileName{Key: k, Hash: hash, Ext: "geojson"}.String()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return hash
}

func testRun(t *testing.T, dir string) config.Run {
	t.Helper()
	cols := filepath.Join(t.TempDir(), "columns.yaml")
	if err := os.WriteFile(cols, []byte(columnYAML), 0o644); err != nil {
		t.Fatalf("write columns: %v", err)
	}
	return config.Run{
		Job:           "test",
		Namespace:     "census.2020",
		Jurisdictions: []string{"04"},
		Levels:        []string{"tract", "aiannh", "county"},
		Years:         []string{"2020"},
		Source:        config.Source{Kind: "file", File: config.SourceFile{Dir: dir}},
		Columns:       cols,
		Storage:       config.Storage{Kind: "memory", DB: config.DBConfig{AutoCreateTable: true}},
	}
}

// useStore points newStoreFn at s for the duration of the test.
func useStore(t *testing.T, s storage.Store) {
	t.Helper()
	orig := newStoreFn
	newStoreFn = func(context.Context, storage.Config) (storage.Store, error) { return s, nil }
	t.Cleanup(func() { newStoreFn = orig })
}

func TestExecute_LoadsSkipsAndFails(t *testing.T) {
	dir := t.TempDir()
	hash := cache(t, dir, datasource.Key{FIPS: "04", Level: "tract", Year: "2020"}, collection(
		feature(`"GEOID20":"04013000100","NAME20":"1","COUNTYFP20":"013","INTPTLAT20":"33.4","INTPTLON20":"-112.0","ALAND20":1200`, 0),
		feature(`"GEOID20":"04019000100","NAME20":"2","COUNTYFP20":"019","INTPTLAT20":"32.2","INTPTLON20":"-110.9","ALAND20":900`, 2),
	))
	// county/2020 is not cached at all and fails with ErrNotFound.

	run := testRun(t, dir)
	run.Registry.MissingDatasets = []config.MissingDataset{{FIPS: "04", Level: "aiannh", Year: "2020"}}

	s := memory.New()
	useStore(t, s)

	sum, err := execute(context.Background(), run, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sum != (summary{loaded: 1, skipped: 1, failed: 1}) {
		t.Fatalf("summary = %+v", sum)
	}
	if got := exitCode(sum, err); got != 1 {
		t.Errorf("exitCode = %d, want 1", got)
	}

	if got := len(s.Geographies("census.2020", "tract/2020")); got != 2 {
		t.Errorf("geographies = %d, want 2", got)
	}
	if v, ok := s.Attribute("census.2020", "tract/2020", "04013000100", "land_area_2020"); !ok || v != "1200" {
		t.Errorf("land_area_2020 = %v, %v", v, ok)
	}
	if got := s.Members("census.2020", "tract/2020", "04019"); len(got) != 1 {
		t.Errorf("members 04019 = %v", got)
	}
	imps := s.Imports()
	if len(imps) != 1 {
		t.Fatalf("imports = %d, want 1", len(imps))
	}
	for _, want := range []string{"TIGER2020PL/LAYER/TRACT/2020/tl_2020_04_tract20.zip", "SHA256: " + hash} {
		if !strings.Contains(imps[0].Notes, want) {
			t.Errorf("notes %q missing %q", imps[0].Notes, want)
		}
	}
}

func TestExecute_HashMismatchFailsLayer(t *testing.T) {
	dir := t.TempDir()
	k := datasource.Key{FIPS: "04", Level: "tract", Year: "2020"}
	name := datasource.FileName{Key: k, Hash: strings.Repeat("0", 64), Ext: "geojson"}.String()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(collection()), 0o644); err != nil {
		t.Fatal(err)
	}

	run := testRun(t, dir)
	run.Levels = []string{"tract"}
	useStore(t, memory.New())

	sum, err := execute(context.Background(), run, "")
	if err != nil || sum.failed != 1 {
		t.Fatalf("execute = %+v, %v; want one failed layer", sum, err)
	}
}

type sourceFunc func(ctx context.Context, k datasource.Key) (datasource.Opened, error)

func (f sourceFunc) Open(ctx context.Context, k datasource.Key) (datasource.Opened, error) {
	return f(ctx, k)
}

func TestExecute_EnvironmentErrorAborts(t *testing.T) {
	orig := newSourceFn
	defer func() { newSourceFn = orig }()

	var opened int
	newSourceFn = func(config.Run, string) (datasource.Source, error) {
		return sourceFunc(func(context.Context, datasource.Key) (datasource.Opened, error) {
			opened++
			return datasource.Opened{}, fmt.Errorf("cache volume: %w", geography.ErrEnvironment)
		}), nil
	}
	useStore(t, memory.New())

	sum, err := execute(context.Background(), testRun(t, t.TempDir()), "")
	if !errors.Is(err, geography.ErrEnvironment) {
		t.Fatalf("execute err = %v, want ErrEnvironment", err)
	}
	if opened != 1 {
		t.Errorf("layers attempted = %d, want 1", opened)
	}
	if got := exitCode(sum, err); got != 2 {
		t.Errorf("exitCode = %d, want 2", got)
	}
}

func TestExecute_SingleFile(t *testing.T) {
	dir := t.TempDir()
	k := datasource.Key{FIPS: "04", Level: "county", Year: "2020"}
	cache(t, dir, k, collection(
		feature(`"GEOID20":"04013","NAME20":"Maricopa","COUNTYFP20":"013","INTPTLAT20":"33.3","INTPTLON20":"-112.5"`, 0),
	))
	matches, _ := filepath.Glob(filepath.Join(dir, "*.geojson"))

	run := testRun(t, t.TempDir())
	run.Levels = []string{"county"}
	s := memory.New()
	useStore(t, s)

	sum, err := execute(context.Background(), run, matches[0])
	if err != nil || sum.loaded != 1 {
		t.Fatalf("execute = %+v, %v", sum, err)
	}
}

func TestExecute_SingleFileKeyComesFromName(t *testing.T) {
	dir := t.TempDir()
	k := datasource.Key{FIPS: "48", Level: "tract", Year: "2020"}
	cache(t, dir, k, collection(
		feature(`"GEOID20":"48001000100","NAME20":"1","COUNTYFP20":"001","INTPTLAT20":"31.8","INTPTLON20":"-95.6"`, 0),
	))
	matches, _ := filepath.Glob(filepath.Join(dir, "*.geojson"))

	// The run file asks for Arizona; the cached file is Texas.
	run := testRun(t, t.TempDir())
	s := memory.New()
	useStore(t, s)

	sum, err := execute(context.Background(), run, matches[0])
	if err != nil || sum != (summary{loaded: 1}) {
		t.Fatalf("execute = %+v, %v", sum, err)
	}
	if got := s.Members("census.2020", "tract/2020", "48001"); len(got) != 1 || got[0] != "48001000100" {
		t.Errorf("members 48001 = %v", got)
	}
	if got := s.Members("census.2020", "tract/2020", "04001"); len(got) != 0 {
		t.Errorf("members 04001 = %v, want none", got)
	}
	imps := s.Imports()
	if len(imps) != 1 || !strings.Contains(imps[0].Notes, "tl_2020_48_tract20.zip") {
		t.Errorf("imports = %+v", imps)
	}
}

func TestExecute_SingleFileNeedsCacheName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer.geojson")
	if err := os.WriteFile(path, []byte(collection()), 0o644); err != nil {
		t.Fatal(err)
	}
	useStore(t, memory.New())

	if _, err := execute(context.Background(), testRun(t, t.TempDir()), path); err == nil {
		t.Fatal("execute accepted a file without a <fips>_<level>_<year> name")
	}
}

func TestExecute_LevelNamesAreCanonical(t *testing.T) {
	orig := newSourceFn
	defer func() { newSourceFn = orig }()

	var opened []datasource.Key
	newSourceFn = func(config.Run, string) (datasource.Source, error) {
		return sourceFunc(func(_ context.Context, k datasource.Key) (datasource.Opened, error) {
			opened = append(opened, k)
			return datasource.Opened{}, datasource.ErrNotFound
		}), nil
	}
	useStore(t, memory.New())

	run := testRun(t, t.TempDir())
	run.Levels = []string{"Tract", " COUNTY "}
	run.Registry.MissingDatasets = []config.MissingDataset{{FIPS: "04", Level: "tract", Year: "2020"}}

	sum, err := execute(context.Background(), run, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sum != (summary{skipped: 1, failed: 1}) {
		t.Fatalf("summary = %+v", sum)
	}
	if len(opened) != 1 || opened[0].Level != "county" {
		t.Errorf("opened = %v, want only 04_county_2020", opened)
	}
}

func TestNewSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		run     config.Run
		single  string
		wantErr bool
	}{
		{name: "file", run: config.Run{Source: config.Source{Kind: "file"}}},
		{name: "http", run: config.Run{Source: config.Source{Kind: "http", HTTP: config.SourceHTTP{URLTemplate: "http://x/{{.FIPS}}"}}}},
		{name: "single file wins", run: config.Run{Source: config.Source{Kind: "ftp"}}, single: "x.geojson"},
		{name: "unknown", run: config.Run{Source: config.Source{Kind: "ftp"}}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src, err := newSource(tt.run, tt.single)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSource err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src == nil {
				t.Fatalf("newSource returned nil source")
			}
		})
	}
}

func TestLoadRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "run.json")
	if err := os.WriteFile(good, []byte(`{"job":"j","levels":["tract"],"storage":{"kind":"memory"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	run, err := loadRun(good)
	if err != nil || run.Job != "j" || run.Storage.Kind != "memory" {
		t.Fatalf("loadRun = %+v, %v", run, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"jobs":"typo"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRun(bad); err == nil {
		t.Fatalf("loadRun(unknown field) error = nil")
	}
}

func TestSetupMetrics_Disabled(t *testing.T) {
	for _, backend := range []string{"", "none", "carrier-pigeon", "datadog"} {
		flush := setupMetrics(config.Run{Metrics: config.Metrics{Backend: backend}}, true)
		flush()
	}
}
