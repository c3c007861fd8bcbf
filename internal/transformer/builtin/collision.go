package builtin

import (
	"fmt"
	"log"

	"golang.org/x/text/unicode/norm"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
	"geoetl/internal/metrics"
	"geoetl/pkg/records"
)

// ResolveCollisions merges tribal areas whose trust and reservation parts
// normalized onto one geoid. It must run after NormalizeGeoID.
//
// The fold has two passes. Group buckets rows by geoid in first-seen order;
// Reduce turns each bucket into one row: one row passes through, two rows
// merge, three or more fail with geography.ErrCollisionOverflow.
type ResolveCollisions struct {
	Vintage geography.Vintage

	// NameExceptions lists geoids whose second record legitimately carries
	// an annotated name. The first-seen name is kept for them.
	NameExceptions map[string]struct{}

	Job string

	// Merged is set by Apply.
	Merged int
}

func (*ResolveCollisions) Name() string { return "resolve_collisions" }

func (c *ResolveCollisions) Apply(l *layer.Layer) error {
	c.Merged = 0
	if c.Vintage.Level.Scheme() != geography.Tribal {
		return nil
	}

	buckets, err := Group(l, c.Vintage.IDColumn())
	if err != nil {
		return err
	}
	if len(buckets) < l.Len() {
		rows := make([]layer.Row, 0, len(buckets))
		for _, b := range buckets {
			r, err := c.Reduce(b)
			if err != nil {
				return err
			}
			if len(b.Rows) == 2 {
				c.Merged++
			}
			rows = append(rows, r)
		}
		l.SetRows(rows)
		log.Printf("collisions: layer=%s merged=%d", c.Vintage, c.Merged)
		metrics.RecordRow(c.Job, "collisions_merged", int64(c.Merged))
	}

	v := c.Vintage
	l.Project(v.IDColumn(), v.NameColumn(), v.LatColumn(), v.LonColumn(), ClassColumn, v.LandColumn(), v.WaterColumn())
	return nil
}

// Bucket is every row that normalized onto one geoid.
type Bucket struct {
	GeoID string
	Rows  []layer.Row
}

// Group buckets rows by the value of idCol, in order of first occurrence.
func Group(l *layer.Layer, idCol string) ([]Bucket, error) {
	pos := make(map[string]int, l.Len())
	var out []Bucket
	for _, r := range l.Rows() {
		id, ok := r.Values.String(idCol)
		if !ok {
			return nil, &geography.RowError{Column: idCol, Value: r.Values[idCol], Err: fmt.Errorf("identifier is not a string")}
		}
		i, seen := pos[id]
		if !seen {
			pos[id] = len(out)
			out = append(out, Bucket{GeoID: id, Rows: []layer.Row{r}})
			continue
		}
		out[i].Rows = append(out[i].Rows, r)
	}
	return out, nil
}

// Reduce collapses one bucket into a single row.
func (c *ResolveCollisions) Reduce(b Bucket) (layer.Row, error) {
	switch len(b.Rows) {
	case 1:
		return b.Rows[0], nil
	case 2:
		return c.merge(b.GeoID, b.Rows[0], b.Rows[1])
	}
	return layer.Row{}, &geography.RowError{GeoID: b.GeoID, Err: fmt.Errorf("%w (%d rows)", geography.ErrCollisionOverflow, len(b.Rows))}
}

func (c *ResolveCollisions) merge(geoid string, first, second layer.Row) (layer.Row, error) {
	v := c.Vintage
	out := layer.Row{Values: first.Values.Clone()}

	nameCol := v.NameColumn()
	n1, _ := first.Values.String(nameCol)
	n2, _ := second.Values.String(nameCol)
	// Exact match after NFC, so a precomposed and a decomposed accent agree.
	if norm.NFC.String(n1) != norm.NFC.String(n2) {
		if _, ok := c.NameExceptions[geoid]; !ok {
			return layer.Row{}, &geography.RowError{
				GeoID:  geoid,
				Column: nameCol,
				Value:  fmt.Sprintf("%q != %q", n1, n2),
				Err:    geography.ErrNameMismatch,
			}
		}
	}

	for _, col := range []string{v.LandColumn(), v.WaterColumn()} {
		sum, present, err := addCells(geoid, col, first.Values, second.Values)
		if err != nil {
			return layer.Row{}, err
		}
		if present {
			out.Values[col] = sum
		}
	}

	geom, err := geography.UnionGeometry(first.Geometry, second.Geometry)
	if err != nil {
		return layer.Row{}, &geography.RowError{GeoID: geoid, Column: "geometry", Err: err}
	}
	out.Geometry = geom
	out.Values[ClassColumn] = string(geography.Union)
	return out, nil
}

// addCells sums col across a and b. A column absent from both rows is not
// an error; a value that is present but not numeric is.
func addCells(geoid, col string, a, b records.Record) (float64, bool, error) {
	var sum float64
	present := false
	for _, r := range []records.Record{a, b} {
		v, ok := r[col]
		if !ok || v == nil {
			continue
		}
		f, ok := records.Float(v)
		if !ok {
			return 0, false, &geography.RowError{GeoID: geoid, Column: col, Value: v, Err: geography.ErrTypeCoercion}
		}
		sum += f
		present = true
	}
	return sum, present, nil
}
