// Package config defines the JSON run configuration for geoload, the YAML
// column mapping and the dataset registry.
//
// A run file names what to ingest (jurisdictions × levels × years), where the
// layers come from and where they go:
//
//	{
//	  "job": "pl94-2020",
//	  "namespace": "census.2020",
//	  "jurisdictions": ["04", "35"],
//	  "levels": ["county", "tract", "aiannh"],
//	  "years": ["2020"],
//	  "source":  { "kind": "file", "file": { "dir": "/var/cache/tiger" } },
//	  "columns": "configs/columns/pl_geo.yaml",
//	  "registry": { "name_exceptions": ["aiannh:1075:fips32"] },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://..." } }
//	}
//
// Decoding is plain encoding/json; Options gives typed access to the free-form
// option bags.
package config

import (
	"encoding/json"
	"strings"
)

// Run is the top-level object decoded from a run file.
type Run struct {
	// Job labels metrics and log lines for this run.
	Job string `json:"job"`

	// Namespace is the data store namespace the layers are loaded into.
	Namespace string `json:"namespace"`

	// Jurisdictions are two-digit state FIPS codes.
	Jurisdictions []string `json:"jurisdictions"`
	Levels        []string `json:"levels"`
	Years         []string `json:"years"`

	Source Source `json:"source"`

	// Columns is the path to the YAML column mapping, rendered per year.
	Columns string `json:"columns"`

	// Registry extends DefaultRegistry.
	Registry Registry `json:"registry"`

	Storage Storage `json:"storage"`
	Metrics Metrics `json:"metrics"`
}

// Source identifies where raw layers are read from.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
}

// SourceFile reads cached layers named "<fips>_<level>_<year>--<sha256>.geojson"
// from a directory.
type SourceFile struct {
	Dir string `json:"dir"`
}

// SourceHTTP fetches GeoJSON layers over HTTP. URLTemplate is a text/template
// with {{.FIPS}}, {{.Level}}, {{.Year}} and {{.Yr}}.
type SourceHTTP struct {
	URLTemplate string  `json:"url_template"`
	Options     Options `json:"options"`
}

// Storage selects the sink used to persist layers.
type Storage struct {
	// Kind selects the storage backend ("memory", "postgres", "sqlite",
	// "mssql", "mysql").
	Kind string   `json:"kind"`
	DB   DBConfig `json:"db"`
}

// DBConfig configures the SQL backends.
type DBConfig struct {
	DSN string `json:"dsn"`

	// Schema optionally qualifies every table (e.g. "geo").
	Schema string `json:"schema"`

	// AutoCreateTable creates the backing tables when missing.
	AutoCreateTable bool `json:"auto_create_table"`

	// BatchSize bounds the rows per insert batch. Zero means the backend default.
	BatchSize int `json:"batch_size"`
}

// Metrics selects the metrics backend. Flags and environment take precedence.
type Metrics struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// Environment variables that override run-file values.
const (
	EnvDSN            = "GEOETL_DSN"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DD_AGENT_ADDR"
)

// ApplyEnv overlays non-empty environment values onto r.
func (r *Run) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&r.Storage.DB.DSN, EnvDSN)
	set(&r.Metrics.Backend, EnvMetricsBackend)
	set(&r.Metrics.PushgatewayURL, EnvPushgatewayURL)
	set(&r.Metrics.DatadogAddr, EnvDatadogAddr)
}

// Options fetches typed values from free-form JSON maps. It performs minimal
// coercion and returns the default when a key is absent or mistyped.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringMap returns the string-valued entries of an object at key.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
