package layer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"geoetl/internal/geography"
	"geoetl/pkg/records"
)

// ReadGeoJSON decodes a GeoJSON FeatureCollection into a Layer. Feature
// properties become columns; every geometry must be a Polygon or
// MultiPolygon. The second return value is the hex SHA-256 of the bytes
// read, used as the layer's provenance hash.
func ReadGeoJSON(r io.Reader) (*Layer, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("layer: read: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, "", fmt.Errorf("layer: decode geojson: %w", err)
	}

	l := New()
	for i, f := range fc.Features {
		if err := geography.CheckGeometry(f.Geometry); err != nil {
			return nil, "", fmt.Errorf("layer: feature %d: %w", i, err)
		}
		l.Append(records.Record(f.Properties.Clone()), f.Geometry)
	}
	return l, hash, nil
}
