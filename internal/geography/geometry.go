package geography

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/peterstace/simplefeatures/geom"
)

// Polygons flattens a Polygon or MultiPolygon into its polygons.
func Polygons(g orb.Geometry) ([]orb.Polygon, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{t}, nil
	case orb.MultiPolygon:
		return []orb.Polygon(t), nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrGeometry)
	}
	return nil, fmt.Errorf("%w: %s", ErrGeometry, g.GeoJSONType())
}

// CheckGeometry accepts only Polygon and MultiPolygon geometries.
func CheckGeometry(g orb.Geometry) error {
	_, err := Polygons(g)
	return err
}

// UnionGeometry dissolves a and b into one MultiPolygon. Overlapping area is
// counted once and parts that share an edge become a single polygon.
func UnionGeometry(a, b orb.Geometry) (orb.MultiPolygon, error) {
	ga, err := toSimple(a)
	if err != nil {
		return nil, err
	}
	gb, err := toSimple(b)
	if err != nil {
		return nil, err
	}
	u, err := geom.Union(ga, gb)
	if err != nil {
		return nil, fmt.Errorf("%w: union: %v", ErrGeometry, err)
	}
	back, err := wkb.Unmarshal(u.AsBinary())
	if err != nil {
		return nil, fmt.Errorf("%w: union result: %v", ErrGeometry, err)
	}
	switch t := back.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{t}, nil
	case orb.MultiPolygon:
		return t, nil
	}
	return nil, fmt.Errorf("%w: union produced %s", ErrGeometry, back.GeoJSONType())
}

// toSimple converts through WKB, the one encoding both libraries share.
func toSimple(g orb.Geometry) (geom.Geometry, error) {
	if err := CheckGeometry(g); err != nil {
		return geom.Geometry{}, err
	}
	b, err := wkb.Marshal(g)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	sg, err := geom.UnmarshalWKB(b)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return sg, nil
}

// MarshalWKB encodes a polygonal geometry as little-endian WKB.
func MarshalWKB(g orb.Geometry) ([]byte, error) {
	if err := CheckGeometry(g); err != nil {
		return nil, err
	}
	b, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return b, nil
}
