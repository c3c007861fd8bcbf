// Package transformer runs the ordered stages that turn a raw census layer
// into canonical geographies. Every stage owns the layer while it runs and
// rewrites it in place; the first failing stage stops the chain.
package transformer

import (
	"fmt"
	"time"

	"geoetl/internal/layer"
	"geoetl/internal/metrics"
)

// Stage is one step of the layer transform.
type Stage interface {
	Name() string
	Apply(l *layer.Layer) error
}

// Chain is an ordered list of stages.
type Chain []Stage

// Apply runs each stage in order. Step latency and outcome are recorded
// under job; the returned error names the failing stage.
func (c Chain) Apply(job string, l *layer.Layer) error {
	for _, s := range c {
		start := time.Now()
		err := s.Apply(l)
		metrics.RecordStep(job, s.Name(), err, time.Since(start))
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

// Func adapts a plain function to a Stage.
type Func struct {
	StageName string
	Fn        func(l *layer.Layer) error
}

func (f Func) Name() string               { return f.StageName }
func (f Func) Apply(l *layer.Layer) error { return f.Fn(l) }
