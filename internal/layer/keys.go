package layer

import (
	"sort"

	"geoetl/pkg/records"
)

func sortedKeys(r records.Record) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
