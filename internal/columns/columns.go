// Package columns binds the column mapping of a run to the attribute
// columns a data store knows about.
package columns

import (
	"fmt"
	"log"

	"geoetl/internal/config"
	"geoetl/internal/storage"
)

// Map resolves specs against a layer and a catalog. Specs whose source
// column is not in the layer are skipped; a target the catalog does not know
// fails the whole mapping with storage.ErrUnknownColumn.
func Map(specs []config.ColumnSpec, has func(column string) bool, cat storage.Catalog) ([]storage.Binding, error) {
	out := make([]storage.Binding, 0, len(specs))
	skipped := 0
	for _, s := range specs {
		if !has(s.Source) {
			skipped++
			continue
		}
		col, ok := cat.Column(s.Target)
		if !ok {
			return nil, fmt.Errorf("column %s -> %s: %w", s.Source, s.Target, storage.ErrUnknownColumn)
		}
		out = append(out, storage.Binding{Source: s.Source, Column: col})
	}
	if skipped > 0 {
		log.Printf("columns: mapped=%d skipped=%d", len(out), skipped)
	}
	return out, nil
}

// Targets lists the distinct target columns of specs in first-seen order.
func Targets(specs []config.ColumnSpec) []string {
	seen := make(map[string]struct{}, len(specs))
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.Target]; ok {
			continue
		}
		seen[s.Target] = struct{}{}
		out = append(out, s.Target)
	}
	return out
}
