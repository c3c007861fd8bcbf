package geography

import (
	"sort"

	"github.com/paulmach/orb"
)

// Classification tags how a record relates to trust and reservation land.
type Classification string

const (
	Plain       Classification = "plain"
	Trust       Classification = "trust"
	Reservation Classification = "reservation"
	Union       Classification = "union"
)

// Record is the canonical, storage-ready geography.
type Record struct {
	GeoID          string
	Name           string
	Geometry       orb.Geometry
	InternalPoint  orb.Point
	LandArea       float64
	WaterArea      float64
	Classification Classification

	// Attributes holds the remaining source columns for column mapping.
	Attributes map[string]any
}

// CountyIndex maps a county code to the geoids inside it.
type CountyIndex map[string]map[string]struct{}

// Add records geoid as a member of county.
func (c CountyIndex) Add(county, geoid string) {
	set, ok := c[county]
	if !ok {
		set = make(map[string]struct{})
		c[county] = set
	}
	set[geoid] = struct{}{}
}

// Counties returns the county codes in ascending order.
func (c CountyIndex) Counties() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Members returns the geoids of county in ascending order.
func (c CountyIndex) Members(county string) []string {
	set := c[county]
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of counties.
func (c CountyIndex) Len() int { return len(c) }
