package httpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"

	"geoetl/internal/config"
	"geoetl/internal/datasource"
)

// Layers is a datasource.Source that renders a URL template per layer and
// fetches it with Client.
type Layers struct {
	client *Client
	tmpl   *template.Template
}

type urlData struct {
	FIPS  string
	Level string
	Year  string
	Yr    string
}

// NewLayers parses urlTemplate. It may use {{.FIPS}}, {{.Level}}, {{.Year}}
// and {{.Yr}}.
func NewLayers(client *Client, urlTemplate string) (*Layers, error) {
	tmpl, err := template.New("url").Option("missingkey=error").Parse(urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("httpds: url template: %w", err)
	}
	return &Layers{client: client, tmpl: tmpl}, nil
}

// FromConfig builds Layers from a run's http source. Recognised options are
// timeout_seconds, max_retries, insecure_skip_verify and headers.
func FromConfig(src config.SourceHTTP) (*Layers, error) {
	o := src.Options
	hdr := http.Header{}
	for k, v := range o.StringMap("headers") {
		hdr.Set(k, v)
	}
	c := NewClient(Config{
		Timeout:            secondsOption(o, "timeout_seconds"),
		MaxRetries:         o.Int("max_retries", 3),
		InsecureSkipVerify: o.Bool("insecure_skip_verify", false),
		Headers:            hdr,
	})
	return NewLayers(c, src.URLTemplate)
}

// URL renders the layer URL for k.
func (l *Layers) URL(k datasource.Key) (string, error) {
	yd := config.NewYearData(k.Year)
	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, urlData{FIPS: k.FIPS, Level: k.Level, Year: yd.Year, Yr: yd.Yr}); err != nil {
		return "", fmt.Errorf("httpds: render url for %s: %w", k, err)
	}
	return buf.String(), nil
}

func (l *Layers) Open(ctx context.Context, k datasource.Key) (datasource.Opened, error) {
	url, err := l.URL(k)
	if err != nil {
		return datasource.Opened{}, err
	}
	resp, err := l.client.Get(ctx, url)
	if err != nil {
		return datasource.Opened{}, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return datasource.Opened{}, fmt.Errorf("%w: %s at %s", datasource.ErrNotFound, k, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return datasource.Opened{}, fmt.Errorf("httpds: GET %s: %s: %s", url, resp.Status, bytes.TrimSpace(body))
	}
	return datasource.Opened{Body: resp.Body, Location: url}, nil
}

func secondsOption(o config.Options, key string) time.Duration {
	return time.Duration(o.Int(key, 0)) * time.Second
}
