package geography

import (
	"fmt"
	"strconv"
)

// Vintage pairs a level with a four-digit census year. TIGER attribute
// columns carry the last two digits of the year as a suffix.
type Vintage struct {
	Level Level
	Year  string
}

// NewVintage validates level and year names.
func NewVintage(level, year string) (Vintage, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return Vintage{}, err
	}
	if err := checkYear(year); err != nil {
		return Vintage{}, err
	}
	return Vintage{Level: l, Year: year}, nil
}

func checkYear(year string) error {
	if len(year) != 4 {
		return fmt.Errorf("year %q: want four digits", year)
	}
	if _, err := strconv.Atoi(year); err != nil {
		return fmt.Errorf("year %q: want four digits", year)
	}
	return nil
}

func (v Vintage) String() string { return v.Level.String() + "/" + v.Year }

// Suffix returns the two-digit year suffix ("2020" -> "20").
func (v Vintage) Suffix() string {
	if len(v.Year) < 2 {
		return v.Year
	}
	return v.Year[len(v.Year)-2:]
}

func (v Vintage) IDColumn() string     { return "GEOID" + v.Suffix() }
func (v Vintage) NameColumn() string   { return "NAME" + v.Suffix() }
func (v Vintage) CountyColumn() string { return "COUNTYFP" + v.Suffix() }
func (v Vintage) LatColumn() string    { return "INTPTLAT" + v.Suffix() }
func (v Vintage) LonColumn() string    { return "INTPTLON" + v.Suffix() }
func (v Vintage) LandColumn() string   { return "ALAND" + v.Suffix() }
func (v Vintage) WaterColumn() string  { return "AWATER" + v.Suffix() }
