// Package geography defines the census geography levels, the canonical
// geography record, and the error taxonomy shared by every ingest stage.
//
// A Level is a closed enumeration. Each level carries exactly one identifier
// scheme; adding a level means adding one entry to levelTable, and the table
// is sized by levelCount so every level has a slot (TestLevelTable checks
// that none is left empty).
package geography

import (
	"fmt"
	"strings"
)

// Level is one census geography level.
type Level uint8

const (
	Block Level = iota
	BlockGroup
	Tract
	County
	State
	VotingDistrict
	Place
	CountySubdivision
	TribalSubdivision
	StatisticalArea
	TribalArea

	levelCount
)

// Scheme selects how raw identifiers become canonical geoids.
type Scheme uint8

const (
	// Ordinary levels use the raw census identifier unchanged.
	Ordinary Scheme = iota
	// CrossBoundary levels are split at jurisdiction edges while sharing one
	// identifier; geoids are prefixed with "<level>:".
	CrossBoundary
	// Tribal is the cross-boundary level whose identifiers also carry a
	// trust/reservation suffix and need a jurisdiction qualifier.
	Tribal
)

type levelSpec struct {
	name      string
	scheme    Scheme
	hasCounty bool
}

var levelTable = [levelCount]levelSpec{
	Block:             {name: "block", scheme: Ordinary, hasCounty: true},
	BlockGroup:        {name: "bg", scheme: Ordinary, hasCounty: true},
	Tract:             {name: "tract", scheme: Ordinary, hasCounty: true},
	County:            {name: "county", scheme: Ordinary, hasCounty: true},
	State:             {name: "state", scheme: Ordinary},
	VotingDistrict:    {name: "vtd", scheme: Ordinary, hasCounty: true},
	Place:             {name: "place", scheme: Ordinary},
	CountySubdivision: {name: "cousub", scheme: Ordinary, hasCounty: true},
	TribalSubdivision: {name: "aitsn", scheme: CrossBoundary},
	StatisticalArea:   {name: "cbsa", scheme: CrossBoundary},
	TribalArea:        {name: "aiannh", scheme: Tribal},
}

// Levels returns every known level in declaration order.
func Levels() []Level {
	out := make([]Level, 0, levelCount)
	for l := Level(0); l < levelCount; l++ {
		out = append(out, l)
	}
	return out
}

// ParseLevel resolves a level name such as "tract" or "aiannh".
func ParseLevel(name string) (Level, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for l := Level(0); l < levelCount; l++ {
		if levelTable[l].name == n {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedLevel, name)
}

// Valid reports whether l is a member of the enumeration.
func (l Level) Valid() bool { return l < levelCount }

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", uint8(l))
	}
	return levelTable[l].name
}

// Scheme returns the identifier scheme of l.
func (l Level) Scheme() Scheme {
	if !l.Valid() {
		return Ordinary
	}
	return levelTable[l].scheme
}

// Prefixed reports whether geoids of this level carry a "<level>:" tag.
func (l Level) Prefixed() bool { return l.Scheme() != Ordinary }

// HasCountyColumn reports whether TIGER layers of this level are published
// with a county code column.
func (l Level) HasCountyColumn() bool {
	return l.Valid() && levelTable[l].hasCounty
}

// GeoID turns a raw identifier into the canonical geoid for this level.
//
//	ordinary:       raw
//	cross-boundary: "<level>:" + raw
//	tribal:         "<level>:" + raw without trust/reservation suffix + ":fips<jurisdiction>"
func (l Level) GeoID(raw, jurisdiction string) (string, Classification, error) {
	if !l.Valid() {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedLevel, l)
	}
	switch levelTable[l].scheme {
	case Ordinary:
		return raw, Plain, nil
	case CrossBoundary:
		return l.String() + ":" + raw, Plain, nil
	case Tribal:
		class, err := ClassifyTribal(raw)
		if err != nil {
			return "", "", err
		}
		stripped := strings.TrimRight(raw, "rtRT")
		return l.String() + ":" + stripped + ":fips" + jurisdiction, class, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedLevel, l)
}

// ClassifyTribal inspects the final character of a tribal area identifier.
func ClassifyTribal(raw string) (Classification, error) {
	if raw == "" {
		return "", &RowError{Column: "geoid", Value: raw, Err: ErrClassification}
	}
	switch raw[len(raw)-1] {
	case 'T', 't':
		return Trust, nil
	case 'R', 'r':
		return Reservation, nil
	}
	return "", &RowError{GeoID: raw, Column: "geoid", Value: raw, Err: ErrClassification}
}
