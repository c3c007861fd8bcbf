// Package storage defines the versioned geographic data store contracts and
// the backend-agnostic loading helpers.
//
// Backends (memory, postgres, sqlite, mssql, mysql) register a Factory under
// their kind at init time; callers obtain a Store through New and never
// import a backend directly.
package storage

import (
	"context"
	"errors"
	"sort"

	"geoetl/internal/geography"

	"github.com/google/uuid"
)

// DefaultBatchSize is used when Config.BatchSize is zero.
const DefaultBatchSize = 1000

// ErrUnknownColumn is returned when a load references a column the catalog
// does not define.
var ErrUnknownColumn = errors.New("storage: unknown column")

// ErrUnknownGeography is returned when a load or locality mapping references
// a geography that was never created in the namespace.
var ErrUnknownGeography = errors.New("storage: unknown geography")

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
	// Schema qualifies every table name when the backend supports schemas.
	Schema    string
	BatchSize int
}

// Column is an opaque handle to a data store column.
type Column struct {
	Name string
}

// Catalog resolves target column names to handles.
type Catalog interface {
	Column(name string) (Column, bool)
}

// MapCatalog is a Catalog backed by a map.
type MapCatalog map[string]Column

// NewCatalog builds a catalog from column names.
func NewCatalog(names ...string) MapCatalog {
	c := make(MapCatalog, len(names))
	for _, n := range names {
		c[n] = Column{Name: n}
	}
	return c
}

// Column implements Catalog.
func (c MapCatalog) Column(name string) (Column, bool) {
	col, ok := c[name]
	return col, ok
}

// Names returns the catalog's column names in sorted order.
func (c MapCatalog) Names() []string {
	out := make([]string, 0, len(c))
	for n := range c {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Binding ties a layer attribute to the store column it is written to.
type Binding struct {
	Source string
	Column Column
}

// LoadRequest carries one layer's records into a transaction.
type LoadRequest struct {
	Namespace string
	// Layer is the geography layer path, "<level>/<year>".
	Layer string
	// Locality is the jurisdiction the layer was published for.
	Locality string
	Records  []geography.Record
	Columns  []Binding
	// CreateGeo writes geography rows. When false the geographies must already
	// exist and only attribute values are written.
	CreateGeo bool
}

// Store is an opened data store.
type Store interface {
	// EnsureSchema creates the backing tables when they are missing.
	EnsureSchema(ctx context.Context) error
	// DefineColumns adds names to the column catalog. Existing names are kept.
	DefineColumns(ctx context.Context, names []string) error
	// Catalog returns a snapshot of the column catalog.
	Catalog(ctx context.Context) (Catalog, error)
	// Begin opens a transaction tagged with notes and a fresh import id.
	Begin(ctx context.Context, namespace, notes string) (Tx, error)
	Close()
}

// Tx is a single import. Exactly one of Commit or Rollback must be called.
type Tx interface {
	ImportID() uuid.UUID
	LoadLayer(ctx context.Context, req LoadRequest) (int64, error)
	// MapLocality records that geoids of layer lie within locality.
	MapLocality(ctx context.Context, namespace, layer, locality string, geoids []string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
