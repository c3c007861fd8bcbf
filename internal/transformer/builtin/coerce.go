package builtin

import (
	"github.com/paulmach/orb"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
	"geoetl/pkg/records"
)

// PointColumn holds the orb.Point computed by InternalPoints.
const PointColumn = "internal_point"

// InternalPoints parses the internal latitude and longitude columns of the
// vintage and stores orb.Point{lon, lat} in PointColumn. A value that does
// not parse is a geography.ErrTypeCoercion; nothing is imputed.
type InternalPoints struct {
	Vintage geography.Vintage
}

func (InternalPoints) Name() string { return "internal_points" }

func (p InternalPoints) Apply(l *layer.Layer) error {
	latCol, lonCol := p.Vintage.LatColumn(), p.Vintage.LonColumn()
	idCol := p.Vintage.IDColumn()
	l.AddColumn(PointColumn)
	for _, r := range l.Rows() {
		id, _ := r.Values.String(idCol)
		lat, err := coerceFloat(id, latCol, r.Values)
		if err != nil {
			return err
		}
		lon, err := coerceFloat(id, lonCol, r.Values)
		if err != nil {
			return err
		}
		r.Values[PointColumn] = orb.Point{lon, lat}
	}
	return nil
}

func coerceFloat(geoid, col string, r records.Record) (float64, error) {
	v := r[col]
	f, ok := records.Float(v)
	if !ok {
		return 0, &geography.RowError{GeoID: geoid, Column: col, Value: v, Err: geography.ErrTypeCoercion}
	}
	return f, nil
}
