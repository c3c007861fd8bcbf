package builtin

import (
	"fmt"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
)

// ClassColumn is the column NormalizeGeoID adds to record the trust,
// reservation, union or plain classification of each row.
const ClassColumn = "res_trust_class"

// NormalizeGeoID rewrites the identifier column of the vintage into
// canonical geoids in place and adds ClassColumn.
type NormalizeGeoID struct {
	Vintage      geography.Vintage
	Jurisdiction string
}

func (NormalizeGeoID) Name() string { return "normalize_geoid" }

func (n NormalizeGeoID) Apply(l *layer.Layer) error {
	idCol := n.Vintage.IDColumn()
	if !l.Has(idCol) {
		return fmt.Errorf("missing identifier column %s", idCol)
	}
	l.AddColumn(ClassColumn)
	for _, r := range l.Rows() {
		raw, ok := r.Values.String(idCol)
		if !ok {
			return &geography.RowError{Column: idCol, Value: r.Values[idCol], Err: fmt.Errorf("identifier is not a string")}
		}
		id, class, err := n.Vintage.Level.GeoID(raw, n.Jurisdiction)
		if err != nil {
			return err
		}
		r.Values[idCol] = id
		r.Values[ClassColumn] = string(class)
	}
	return nil
}
