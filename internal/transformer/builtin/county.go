package builtin

import (
	"fmt"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
)

// CountyIndex groups raw identifiers by county code. It must run before
// NormalizeGeoID; identifiers are passed through the level's geoid rule so
// the index values match the final geoid domain. A layer without a county
// column yields an empty index.
type CountyIndex struct {
	Vintage      geography.Vintage
	Jurisdiction string

	// Index is set by Apply.
	Index geography.CountyIndex
}

func (*CountyIndex) Name() string { return "county_index" }

func (c *CountyIndex) Apply(l *layer.Layer) error {
	c.Index = geography.CountyIndex{}
	countyCol := c.Vintage.CountyColumn()
	if !l.Has(countyCol) {
		return nil
	}
	idCol := c.Vintage.IDColumn()
	for _, r := range l.Rows() {
		cell := r.Values[countyCol]
		if cell == nil {
			// Rows without a county code belong to no county.
			continue
		}
		raw, ok := r.Values.String(idCol)
		if !ok {
			return &geography.RowError{Column: idCol, Value: r.Values[idCol], Err: fmt.Errorf("identifier is not a string")}
		}
		county, ok := cell.(string)
		if !ok {
			return &geography.RowError{GeoID: raw, Column: countyCol, Value: cell, Err: fmt.Errorf("%w: county code is %T", geography.ErrTypeCoercion, cell)}
		}
		id, _, err := c.Vintage.Level.GeoID(raw, c.Jurisdiction)
		if err != nil {
			return err
		}
		c.Index.Add(county, id)
	}
	return nil
}
