package builtin

import (
	"testing"

	"github.com/paulmach/orb"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
	"geoetl/pkg/records"
)

func square(x, y float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
}

func mustVintage(t *testing.T, level, year string) geography.Vintage {
	t.Helper()
	v, err := geography.NewVintage(level, year)
	if err != nil {
		t.Fatalf("NewVintage(%q, %q): %v", level, year, err)
	}
	return v
}

// build returns a layer holding rows in order, each with its own square.
func build(rows ...records.Record) *layer.Layer {
	l := layer.New()
	for i, r := range rows {
		l.Append(r, square(float64(i*10), 0))
	}
	return l
}

func ids(l *layer.Layer, col string) []string {
	out := make([]string, 0, l.Len())
	for _, r := range l.Rows() {
		s, _ := r.Values.String(col)
		out = append(out, s)
	}
	return out
}
