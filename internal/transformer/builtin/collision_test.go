package builtin

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
	"geoetl/pkg/records"
)

func tribalRow(raw, name string, land, water float64) records.Record {
	return records.Record{
		"GEOID20":    raw,
		"NAME20":     name,
		"ALAND20":    land,
		"AWATER20":   water,
		"INTPTLAT20": "+35.1",
		"INTPTLON20": "-106.6",
		"FUNCSTAT20": "A",
	}
}

// normalized runs NormalizeGeoID so the layer is in the state the resolver
// expects.
func normalized(t *testing.T, v geography.Vintage, fips string, rows ...records.Record) *layer.Layer {
	t.Helper()
	l := build(rows...)
	if err := (NormalizeGeoID{Vintage: v, Jurisdiction: fips}).Apply(l); err != nil {
		t.Fatalf("NormalizeGeoID: %v", err)
	}
	return l
}

func TestResolveCollisions_TwoWayMerge(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "aiannh", "2020")
	l := normalized(t, v, "35",
		tribalRow("2550R", "Example Area", 100, 5),
		tribalRow("0010R", "Other Area", 7, 1),
		tribalRow("2550T", "Example Area", 40, 0),
	)
	rc := &ResolveCollisions{Vintage: v}
	if err := rc.Apply(l); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rc.Merged != 1 {
		t.Fatalf("Merged = %d, want 1", rc.Merged)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}

	r := l.Rows()[0]
	if r.Values["GEOID20"] != "aiannh:2550:fips35" {
		t.Fatalf("geoid = %v", r.Values["GEOID20"])
	}
	if r.Values["ALAND20"] != float64(140) || r.Values["AWATER20"] != float64(5) {
		t.Fatalf("areas = %v/%v, want 140/5", r.Values["ALAND20"], r.Values["AWATER20"])
	}
	if r.Values[ClassColumn] != "union" {
		t.Fatalf("class = %v, want union", r.Values[ClassColumn])
	}
	mp, ok := r.Geometry.(orb.MultiPolygon)
	if !ok || len(mp) != 2 || math.Abs(planar.Area(mp)) != 2 {
		t.Fatalf("geometry = %v, want union of both disjoint parts", r.Geometry)
	}
	if _, ok := r.Values["FUNCSTAT20"]; ok {
		t.Fatalf("projection kept FUNCSTAT20")
	}

	// The untouched row keeps its own classification.
	if got := l.Rows()[1].Values[ClassColumn]; got != "reservation" {
		t.Fatalf("pass-through class = %v, want reservation", got)
	}
}

func TestResolveCollisions_DissolvesSharedEdge(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "aiannh", "2020")
	l := layer.New()
	// The trust part overlaps the reservation by half and the second pair
	// only touches along x=1.
	l.Append(tribalRow("2550R", "Example Area", 1, 0), orb.Polygon{orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}})
	l.Append(tribalRow("2550T", "Example Area", 1, 0), orb.Polygon{orb.Ring{{1, 0}, {3, 0}, {3, 2}, {1, 2}, {1, 0}}})
	l.Append(tribalRow("0010R", "Other Area", 1, 0), square(0, 10))
	l.Append(tribalRow("0010T", "Other Area", 1, 0), square(1, 10))
	if err := (NormalizeGeoID{Vintage: v, Jurisdiction: "35"}).Apply(l); err != nil {
		t.Fatalf("NormalizeGeoID: %v", err)
	}

	if err := (&ResolveCollisions{Vintage: v}).Apply(l); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
	for i, wantArea := range []float64{6, 2} {
		mp, ok := l.Rows()[i].Geometry.(orb.MultiPolygon)
		if !ok || len(mp) != 1 {
			t.Fatalf("row %d geometry = %v, want one polygon", i, l.Rows()[i].Geometry)
		}
		if area := math.Abs(planar.Area(mp)); math.Abs(area-wantArea) > 1e-9 {
			t.Fatalf("row %d area = %v, want %v", i, area, wantArea)
		}
	}
}

func TestResolveCollisions_ThreeWayFails(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "aiannh", "2020")
	l := normalized(t, v, "35",
		tribalRow("2550R", "Example Area", 1, 0),
		tribalRow("2550T", "Example Area", 1, 0),
		tribalRow("2550TR", "Example Area", 1, 0),
	)

	err := (&ResolveCollisions{Vintage: v}).Apply(l)
	if !errors.Is(err, geography.ErrCollisionOverflow) {
		t.Fatalf("Apply error = %v, want ErrCollisionOverflow", err)
	}
	var re *geography.RowError
	if !errors.As(err, &re) || re.GeoID != "aiannh:2550:fips35" {
		t.Fatalf("error does not name the geoid: %v", err)
	}
}

func TestResolveCollisions_NameMismatch(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "aiannh", "2020")
	l := normalized(t, v, "35",
		tribalRow("2550R", "Example Area", 1, 0),
		tribalRow("2550T", "Example Area (Trust Land)", 1, 0),
	)

	err := (&ResolveCollisions{Vintage: v}).Apply(l)
	if !errors.Is(err, geography.ErrNameMismatch) {
		t.Fatalf("Apply error = %v, want ErrNameMismatch", err)
	}
}

func TestResolveCollisions_NameException(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "aiannh", "2020")
	l := normalized(t, v, "32",
		tribalRow("1075R", "Fallon Paiute-Shoshone", 1, 0),
		tribalRow("1075T", "Fallon Paiute-Shoshone (Reservation/Colony)", 2, 0),
	)

	rc := &ResolveCollisions{
		Vintage:        v,
		NameExceptions: map[string]struct{}{"aiannh:1075:fips32": {}},
	}
	if err := rc.Apply(l); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := l.Rows()[0].Values["NAME20"]; got != "Fallon Paiute-Shoshone" {
		t.Fatalf("name = %v, want first-seen name", got)
	}
}

func TestResolveCollisions_CanonicalEquivalentNames(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "aiannh", "2020")
	l := normalized(t, v, "35",
		tribalRow("2550R", "Pe\u00f1asco", 1, 0),
		tribalRow("2550T", "Pen\u0303asco", 1, 0),
	)
	if err := (&ResolveCollisions{Vintage: v}).Apply(l); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestResolveCollisions_NonTribalIsNoop(t *testing.T) {
	t.Parallel()

	v := mustVintage(t, "tract", "2020")
	l := build(records.Record{"GEOID20": "1"}, records.Record{"GEOID20": "1"})
	rc := &ResolveCollisions{Vintage: v}
	if err := rc.Apply(l); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
}

func TestReduce_SingleRowPassesThrough(t *testing.T) {
	t.Parallel()

	row := layer.Row{Values: records.Record{"GEOID20": "x"}}
	got, err := (&ResolveCollisions{}).Reduce(Bucket{GeoID: "x", Rows: []layer.Row{row}})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if got.Values["GEOID20"] != "x" {
		t.Fatalf("Reduce = %#v", got)
	}
}
