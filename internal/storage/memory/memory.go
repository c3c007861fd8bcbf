// Package memory is an in-process storage backend. It backs dry runs and
// tests; nothing survives the process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"geoetl/internal/geography"
	"geoetl/internal/storage"

	"github.com/google/uuid"
)

// ErrTxDone is returned by operations on a committed or rolled back Tx.
var ErrTxDone = errors.New("memory: transaction already finished")

func init() {
	storage.Register("memory", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(), nil
	})
}

// Import is one committed import.
type Import struct {
	ID        uuid.UUID
	Namespace string
	Notes     string
	CreatedAt time.Time
}

type geoKey struct{ namespace, layer, geoid string }

type attrKey struct {
	geoKey
	column string
}

type memberKey struct {
	namespace, layer, locality, geoid string
}

type localityKey struct{ namespace, layer, locality string }

// Store holds committed state.
type Store struct {
	mu      sync.Mutex
	columns storage.MapCatalog
	imports []Import
	geos    map[geoKey]geography.Record
	attrs   map[attrKey]any
	members map[memberKey]struct{}
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		columns: storage.MapCatalog{},
		geos:    map[geoKey]geography.Record{},
		attrs:   map[attrKey]any{},
		members: map[memberKey]struct{}{},
	}
}

// EnsureSchema is a no-op.
func (s *Store) EnsureSchema(ctx context.Context) error { return nil }

func (s *Store) DefineColumns(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.columns[n] = storage.Column{Name: n}
	}
	return nil
}

func (s *Store) Catalog(ctx context.Context) (storage.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(storage.MapCatalog, len(s.columns))
	for k, v := range s.columns {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Begin(ctx context.Context, namespace, notes string) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    s,
		imp:      Import{ID: uuid.New(), Namespace: namespace, Notes: notes, CreatedAt: time.Now().UTC()},
		geos:     map[geoKey]geography.Record{},
		attrs:    map[attrKey]any{},
		mems:     map[memberKey]struct{}{},
		clearGeo: map[geoKey]struct{}{},
		clearLoc: map[localityKey]struct{}{},
	}, nil
}

func (s *Store) Close() {}

// Imports returns committed imports in commit order.
func (s *Store) Imports() []Import {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Import(nil), s.imports...)
}

// Geographies returns the committed records of a layer sorted by geoid.
func (s *Store) Geographies(namespace, layer string) []geography.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []geography.Record
	for k, r := range s.geos {
		if k.namespace == namespace && k.layer == layer {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeoID < out[j].GeoID })
	return out
}

// Attribute returns a committed attribute value.
func (s *Store) Attribute(namespace, layer, geoid, column string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[attrKey{geoKey{namespace, layer, geoid}, column}]
	return v, ok
}

// Members returns the sorted geoids mapped to locality.
func (s *Store) Members(namespace, layer, locality string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.members {
		if k.namespace == namespace && k.layer == layer && k.locality == locality {
			out = append(out, k.geoid)
		}
	}
	sort.Strings(out)
	return out
}

// Tx buffers writes until Commit. Attribute rows of a reloaded geoid and
// the members of a remapped locality replace what was committed before.
type Tx struct {
	store *Store
	imp   Import
	geos  map[geoKey]geography.Record
	attrs map[attrKey]any
	mems  map[memberKey]struct{}

	clearGeo map[geoKey]struct{}
	clearLoc map[localityKey]struct{}

	done bool
}

func (t *Tx) ImportID() uuid.UUID { return t.imp.ID }

func (t *Tx) LoadLayer(ctx context.Context, req storage.LoadRequest) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	cat, err := t.store.Catalog(ctx)
	if err != nil {
		return 0, err
	}
	if err := storage.CheckBindings(cat, req.Columns); err != nil {
		return 0, err
	}

	var n int64
	for _, rec := range req.Records {
		k := geoKey{req.Namespace, req.Layer, rec.GeoID}
		if req.CreateGeo {
			if _, err := geography.MarshalWKB(rec.Geometry); err != nil {
				return n, &geography.RowError{GeoID: rec.GeoID, Column: "geometry", Err: err}
			}
			t.geos[k] = rec
		} else if !t.exists(k) {
			return n, fmt.Errorf("%w: %s", storage.ErrUnknownGeography, rec.GeoID)
		}
		if len(req.Columns) > 0 {
			t.clearAttrs(k)
			for _, row := range storage.AttributeRows(req.Namespace, req.Layer, rec, req.Columns) {
				t.attrs[attrKey{k, row[3].(string)}] = row[4]
			}
		}
		n++
	}
	return n, nil
}

func (t *Tx) MapLocality(ctx context.Context, namespace, layer, locality string, geoids []string) error {
	if t.done {
		return ErrTxDone
	}
	for _, id := range geoids {
		if !t.exists(geoKey{namespace, layer, id}) {
			return fmt.Errorf("%w: %s in %s", storage.ErrUnknownGeography, id, locality)
		}
	}
	lk := localityKey{namespace, layer, locality}
	t.clearLoc[lk] = struct{}{}
	for k := range t.mems {
		if k.namespace == namespace && k.layer == layer && k.locality == locality {
			delete(t.mems, k)
		}
	}
	for _, id := range geoids {
		t.mems[memberKey{namespace, layer, locality, id}] = struct{}{}
	}
	return nil
}

func (t *Tx) clearAttrs(k geoKey) {
	t.clearGeo[k] = struct{}{}
	for ak := range t.attrs {
		if ak.geoKey == k {
			delete(t.attrs, ak)
		}
	}
}

func (t *Tx) exists(k geoKey) bool {
	if _, ok := t.geos[k]; ok {
		return true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.geos[k]
	return ok
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range t.geos {
		s.geos[k] = v
	}
	for ak := range s.attrs {
		if _, ok := t.clearGeo[ak.geoKey]; ok {
			delete(s.attrs, ak)
		}
	}
	for mk := range s.members {
		if _, ok := t.clearLoc[localityKey{mk.namespace, mk.layer, mk.locality}]; ok {
			delete(s.members, mk)
		}
	}
	for k, v := range t.attrs {
		s.attrs[k] = v
	}
	for k := range t.mems {
		s.members[k] = struct{}{}
	}
	s.imports = append(s.imports, t.imp)
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return nil
}
