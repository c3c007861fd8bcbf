package builtin

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"reflect"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/zeebo/xxh3"

	"geoetl/internal/layer"
	"geoetl/internal/metrics"
)

// DeDup drops rows that are identical across every column and the geometry.
// Some TIGER layers ship verbatim duplicate records (California 2010, for
// one), and they would otherwise collide on their path in the store.
//
// Rows are bucketed by a 128-bit xxh3 fingerprint and compared in full
// inside a bucket, so a fingerprint collision never drops a distinct row.
// Survivors keep first-occurrence order.
type DeDup struct {
	// Job labels the duplicates_dropped counter.
	Job string

	// Dropped is set by Apply.
	Dropped int
}

func (*DeDup) Name() string { return "dedup" }

func (d *DeDup) Apply(l *layer.Layer) error {
	d.Dropped = 0
	rows := l.Rows()
	if len(rows) < 2 {
		return nil
	}

	cols := append([]string(nil), l.Columns()...)
	sort.Strings(cols)

	seen := make(map[xxh3.Uint128][]int, len(rows))
	out := rows[:0:0]
	for i, r := range rows {
		fp, err := fingerprint(cols, r)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		dup := false
		for _, j := range seen[fp] {
			if sameRow(cols, rows[j], r) {
				dup = true
				break
			}
		}
		if dup {
			d.Dropped++
			continue
		}
		seen[fp] = append(seen[fp], i)
		out = append(out, r)
	}

	if d.Dropped > 0 {
		log.Printf("dedup: dropped=%d kept=%d", d.Dropped, len(out))
		metrics.RecordRow(d.Job, "duplicates_dropped", int64(d.Dropped))
		l.SetRows(out)
	}
	return nil
}

func fingerprint(cols []string, r layer.Row) (xxh3.Uint128, error) {
	h := xxh3.New()
	var num [8]byte
	for _, c := range cols {
		v, ok := r.Values[c]
		_, _ = h.WriteString(c)
		switch {
		case !ok:
			_, _ = h.Write([]byte{0})
		case v == nil:
			_, _ = h.Write([]byte{1})
		default:
			switch t := v.(type) {
			case string:
				_, _ = h.Write([]byte{2})
				_, _ = h.WriteString(t)
			case float64:
				_, _ = h.Write([]byte{3})
				binary.LittleEndian.PutUint64(num[:], math.Float64bits(t))
				_, _ = h.Write(num[:])
			default:
				_, _ = h.Write([]byte{4})
				_, _ = h.WriteString(fmt.Sprintf("%T:%v", v, v))
			}
		}
		_, _ = h.Write([]byte{0x1f})
	}
	if r.Geometry != nil {
		b, err := wkb.Marshal(r.Geometry)
		if err != nil {
			return xxh3.Uint128{}, fmt.Errorf("encode geometry: %w", err)
		}
		_, _ = h.Write(b)
	}
	return h.Sum128(), nil
}

func sameRow(cols []string, a, b layer.Row) bool {
	for _, c := range cols {
		av, aok := a.Values[c]
		bv, bok := b.Values[c]
		if aok != bok || !sameCell(av, bv) {
			return false
		}
	}
	switch {
	case a.Geometry == nil && b.Geometry == nil:
		return true
	case a.Geometry == nil || b.Geometry == nil:
		return false
	}
	return orb.Equal(a.Geometry, b.Geometry)
}

func sameCell(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if af, ok := a.(float64); ok {
		bf, ok := b.(float64)
		// Bitwise, so a NaN cell matches a NaN cell like the fingerprint does.
		return ok && math.Float64bits(af) == math.Float64bits(bf)
	}
	return reflect.DeepEqual(a, b)
}
