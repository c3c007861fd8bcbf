package config

// MissingDataset names a (jurisdiction, level, year) triple the Census Bureau
// never published. Ingesting it is a no-op, not an error.
type MissingDataset struct {
	FIPS  string `json:"fips"`
	Level string `json:"level"`
	Year  string `json:"year"`
}

// Registry holds the static lists that change how individual layers are
// handled.
type Registry struct {
	MissingDatasets []MissingDataset `json:"missing_datasets"`

	// NameExceptions are tribal geoids whose trust and reservation parts are
	// published under different names. The first-seen name is kept.
	NameExceptions []string `json:"name_exceptions"`
}

// DefaultRegistry returns the exceptions known for the 2010 and 2020 TIGER
// releases.
func DefaultRegistry() Registry {
	return Registry{
		NameExceptions: []string{
			"aiannh:1075:fips32",
			"aiannh:1070:fips32",
		},
	}
}

// Merge returns r extended with the entries of o. Duplicates are dropped.
func (r Registry) Merge(o Registry) Registry {
	out := Registry{}
	seenDS := map[MissingDataset]struct{}{}
	for _, ds := range append(append([]MissingDataset{}, r.MissingDatasets...), o.MissingDatasets...) {
		if _, ok := seenDS[ds]; ok {
			continue
		}
		seenDS[ds] = struct{}{}
		out.MissingDatasets = append(out.MissingDatasets, ds)
	}
	seen := map[string]struct{}{}
	for _, id := range append(append([]string{}, r.NameExceptions...), o.NameExceptions...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out.NameExceptions = append(out.NameExceptions, id)
	}
	return out
}

// Missing reports whether the triple is a known unpublished dataset.
func (r Registry) Missing(fips, level, year string) bool {
	want := MissingDataset{FIPS: fips, Level: level, Year: year}
	for _, ds := range r.MissingDatasets {
		if ds == want {
			return true
		}
	}
	return false
}

// Exceptions returns the name-exception allow-list as a set.
func (r Registry) Exceptions() map[string]struct{} {
	out := make(map[string]struct{}, len(r.NameExceptions))
	for _, id := range r.NameExceptions {
		out[id] = struct{}{}
	}
	return out
}
