// Package builtin contains the stages that turn a raw census layer into
// canonical geographies.
package builtin

import (
	"fmt"
	"strings"

	"geoetl/internal/geography"
	"geoetl/internal/layer"
)

const (
	pathSeparator = "/"
	pathEscape    = "--"
)

// Sanitize rewrites every "/" in string cells as "--" so identifiers can be
// used as path segments by the store.
type Sanitize struct{}

func (Sanitize) Name() string { return "sanitize" }

func (Sanitize) Apply(l *layer.Layer) error {
	if l.ReadOnly() {
		return fmt.Errorf("%w: layer rows are shared and cannot be rewritten in place; clone the layer before ingest", geography.ErrEnvironment)
	}
	for _, r := range l.Rows() {
		for k, v := range r.Values {
			if s, ok := v.(string); ok && strings.Contains(s, pathSeparator) {
				r.Values[k] = strings.ReplaceAll(s, pathSeparator, pathEscape)
			}
		}
	}
	return nil
}
