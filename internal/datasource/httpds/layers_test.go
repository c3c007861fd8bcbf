package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"geoetl/internal/config"
	"geoetl/internal/datasource"
)

func TestLayers_Open(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2020/04/tract20.geojson":
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
		case "/2020/04/broken20.geojson":
			http.Error(w, "denied", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l, err := FromConfig(config.SourceHTTP{
		URLTemplate: srv.URL + "/{{.Year}}/{{.FIPS}}/{{.Level}}{{.Yr}}.geojson",
		Options:     config.Options{"max_retries": float64(0)},
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	ctx := context.Background()

	o, err := l.Open(ctx, datasource.Key{FIPS: "04", Level: "tract", Year: "2020"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(o.Body)
	o.Body.Close()
	if !strings.Contains(string(b), "FeatureCollection") || o.Location != srv.URL+"/2020/04/tract20.geojson" {
		t.Errorf("Opened location=%s body=%s", o.Location, b)
	}

	_, err = l.Open(ctx, datasource.Key{FIPS: "04", Level: "aiannh", Year: "2020"})
	if !errors.Is(err, datasource.ErrNotFound) {
		t.Errorf("Open(404) err = %v, want ErrNotFound", err)
	}

	_, err = l.Open(ctx, datasource.Key{FIPS: "04", Level: "broken", Year: "2020"})
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Errorf("Open(403) err = %v", err)
	}
}

func TestNewLayers_BadTemplate(t *testing.T) {
	t.Parallel()

	if _, err := NewLayers(NewClient(Config{}), "{{.FIPS"); err == nil {
		t.Fatalf("NewLayers error = nil")
	}
	l, err := NewLayers(NewClient(Config{}), "{{.County}}")
	if err != nil {
		t.Fatalf("NewLayers: %v", err)
	}
	if _, err := l.URL(datasource.Key{FIPS: "04"}); err == nil {
		t.Fatalf("URL with unknown field error = nil")
	}
}
