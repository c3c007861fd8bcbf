// Package layer holds one raw census layer in memory: ordered attribute
// columns plus one geometry per row. Transformer stages own the layer they
// are handed and rewrite it in place.
package layer

import (
	"github.com/paulmach/orb"

	"geoetl/pkg/records"
)

// Row is one raw geography row.
type Row struct {
	Values   records.Record
	Geometry orb.Geometry
}

// Layer is an ordered table of rows.
type Layer struct {
	columns  []string
	index    map[string]struct{}
	rows     []Row
	readOnly bool
}

// New returns an empty layer with the given column order.
func New(columns ...string) *Layer {
	l := &Layer{index: make(map[string]struct{}, len(columns))}
	for _, c := range columns {
		l.AddColumn(c)
	}
	return l
}

// Append adds a row. Keys in values that are not yet columns are added in
// sorted order after the existing ones.
func (l *Layer) Append(values records.Record, geom orb.Geometry) {
	if values == nil {
		values = records.Record{}
	}
	for _, k := range sortedKeys(values) {
		l.AddColumn(k)
	}
	l.rows = append(l.rows, Row{Values: values, Geometry: geom})
}

// AddColumn registers name as a column if it is not one already.
func (l *Layer) AddColumn(name string) {
	if _, ok := l.index[name]; ok {
		return
	}
	l.index[name] = struct{}{}
	l.columns = append(l.columns, name)
}

// Has reports whether the layer has column name.
func (l *Layer) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Columns returns the column names in order. The slice must not be modified.
func (l *Layer) Columns() []string { return l.columns }

// Len returns the number of rows.
func (l *Layer) Len() int { return len(l.rows) }

// Rows returns the rows. Callers may modify row values in place.
func (l *Layer) Rows() []Row { return l.rows }

// SetRows replaces the rows.
func (l *Layer) SetRows(rows []Row) { l.rows = rows }

// Project keeps only the named columns that exist, in the given order.
func (l *Layer) Project(keep ...string) {
	cols := make([]string, 0, len(keep))
	index := make(map[string]struct{}, len(keep))
	for _, c := range keep {
		if _, ok := l.index[c]; ok {
			cols = append(cols, c)
			index[c] = struct{}{}
		}
	}
	for i := range l.rows {
		for k := range l.rows[i].Values {
			if _, ok := index[k]; !ok {
				delete(l.rows[i].Values, k)
			}
		}
	}
	l.columns = cols
	l.index = index
}

// MarkReadOnly flags the rows as shared with another owner. Stages that
// rewrite cells refuse to run on a read-only layer.
func (l *Layer) MarkReadOnly() { l.readOnly = true }

// ReadOnly reports whether the rows are shared.
func (l *Layer) ReadOnly() bool { return l.readOnly }

// Clone returns a writable copy whose rows can be modified independently.
func (l *Layer) Clone() *Layer {
	out := New(l.columns...)
	out.rows = make([]Row, len(l.rows))
	for i, r := range l.rows {
		out.rows[i] = Row{Values: r.Values.Clone(), Geometry: orb.Clone(r.Geometry)}
	}
	return out
}
