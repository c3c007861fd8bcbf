package config

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// ColumnSpec maps one layer column to a data store column.
type ColumnSpec struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

type columnFile struct {
	Columns []ColumnSpec `yaml:"columns"`
}

// YearData is the template context for column files: Year is "2020", Yr is "20".
type YearData struct {
	Year string
	Yr   string
}

// NewYearData builds the template context for a four-digit year.
func NewYearData(year string) YearData {
	yr := year
	if len(year) == 4 {
		yr = year[2:]
	}
	return YearData{Year: year, Yr: yr}
}

// ParseColumns renders text as a template for year and decodes the result.
//
//	columns:
//	  - source: ALAND{{.Yr}}
//	    target: land_area
func ParseColumns(text, year string) ([]ColumnSpec, error) {
	tmpl, err := template.New("columns").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("columns: parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewYearData(year)); err != nil {
		return nil, fmt.Errorf("columns: render for %s: %w", year, err)
	}

	var f columnFile
	if err := yaml.Unmarshal(buf.Bytes(), &f); err != nil {
		return nil, fmt.Errorf("columns: decode yaml: %w", err)
	}
	for i, c := range f.Columns {
		if c.Source == "" || c.Target == "" {
			return nil, fmt.Errorf("columns: entry %d needs both source and target", i)
		}
	}
	return f.Columns, nil
}

// LoadColumns reads and renders the column file at path.
func LoadColumns(path, year string) ([]ColumnSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("columns: read %s: %w", path, err)
	}
	return ParseColumns(string(b), year)
}
