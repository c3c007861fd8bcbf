// Package census knows where the Census Bureau publishes TIGER/Line layers.
package census

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"geoetl/internal/geography"
)

const tiger2020PL = "https://www2.census.gov/geo/tiger/TIGER2020PL/LAYER"

// layerURLs holds TIGER/Line download URLs keyed by "<level>/<year>". {fips}
// is replaced with the two-digit state code.
var layerURLs = map[string]string{
	"block/2010":  tiger2020PL + "/TABBLOCK/2010/tl_2020_{fips}_tabblock10.zip",
	"block/2020":  tiger2020PL + "/TABBLOCK/2020/tl_2020_{fips}_tabblock20.zip",
	"bg/2010":     tiger2020PL + "/BG/2010/tl_2020_{fips}_bg10.zip",
	"bg/2020":     tiger2020PL + "/BG/2020/tl_2020_{fips}_bg20.zip",
	"tract/2010":  tiger2020PL + "/TRACT/2010/tl_2020_{fips}_tract10.zip",
	"tract/2020":  tiger2020PL + "/TRACT/2020/tl_2020_{fips}_tract20.zip",
	"county/2010": tiger2020PL + "/COUNTY/2010/tl_2020_{fips}_county10.zip",
	"county/2020": tiger2020PL + "/COUNTY/2020/tl_2020_{fips}_county20.zip",
	"state/2010":  tiger2020PL + "/STATE/2010/tl_2020_{fips}_state10.zip",
	"state/2020":  tiger2020PL + "/STATE/2020/tl_2020_{fips}_state20.zip",
	// 2010 voting districts were never republished under TIGER2020PL.
	"vtd/2010":    "https://www2.census.gov/geo/tiger/TIGER2012/VTD/tl_2012_{fips}_vtd10.zip",
	"vtd/2020":    tiger2020PL + "/VTD/2020/tl_2020_{fips}_vtd20.zip",
	"place/2010":  tiger2020PL + "/PLACE/2010/tl_2020_{fips}_place10.zip",
	"place/2020":  tiger2020PL + "/PLACE/2020/tl_2020_{fips}_place20.zip",
	"cousub/2010": tiger2020PL + "/COUSUB/2010/tl_2020_{fips}_cousub10.zip",
	"cousub/2020": tiger2020PL + "/COUSUB/2020/tl_2020_{fips}_cousub20.zip",
	"aiannh/2010": tiger2020PL + "/AIANNH/2010/tl_2020_{fips}_aiannh10.zip",
	"aiannh/2020": tiger2020PL + "/AIANNH/2020/tl_2020_{fips}_aiannh20.zip",
}

// ErrNoURL is returned for vintages without a known TIGER/Line download.
var ErrNoURL = errors.New("census: no TIGER/Line URL")

// LayerURL returns the TIGER/Line download URL of a layer.
func LayerURL(v geography.Vintage, fips string) (string, error) {
	tmpl, ok := layerURLs[v.String()]
	if !ok {
		return "", fmt.Errorf("%w for %s", ErrNoURL, v)
	}
	if len(fips) != 2 {
		return "", fmt.Errorf("census: fips %q: want two digits", fips)
	}
	return strings.ReplaceAll(tmpl, "{fips}", fips), nil
}

// Published lists the vintages with a known download URL, sorted.
func Published() []string {
	out := make([]string, 0, len(layerURLs))
	for k := range layerURLs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
