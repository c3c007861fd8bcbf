package transformer

import (
	"errors"
	"strings"
	"testing"

	"geoetl/internal/layer"
	"geoetl/pkg/records"
)

// setField is a stage that writes key=val on every row.
func setField(key string, val any) Stage {
	return Func{StageName: "set_" + key, Fn: func(l *layer.Layer) error {
		l.AddColumn(key)
		for _, r := range l.Rows() {
			r.Values[key] = val
		}
		return nil
	}}
}

func TestChainApply_RunsInOrder(t *testing.T) {
	t.Parallel()

	l := layer.New("a")
	l.Append(records.Record{"a": "1"}, nil)
	l.Append(records.Record{"a": "2"}, nil)

	c := Chain{setField("x", 1), setField("x", 2)}
	if err := c.Apply("test", l); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i, r := range l.Rows() {
		if r.Values["x"] != 2 {
			t.Fatalf("row %d x = %v, want 2 (last stage wins)", i, r.Values["x"])
		}
	}
}

func TestChainApply_StopsOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ran := false
	c := Chain{
		Func{StageName: "fail", Fn: func(*layer.Layer) error { return boom }},
		Func{StageName: "after", Fn: func(*layer.Layer) error { ran = true; return nil }},
	}

	err := c.Apply("test", layer.New())
	if !errors.Is(err, boom) {
		t.Fatalf("Apply error = %v, want boom", err)
	}
	if !strings.HasPrefix(err.Error(), "fail: ") {
		t.Fatalf("Apply error = %q, want stage name prefix", err)
	}
	if ran {
		t.Fatalf("stage after the failure ran")
	}
}
