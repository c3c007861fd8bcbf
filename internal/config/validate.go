package config

import (
	"fmt"
	"strings"

	"geoetl/internal/geography"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "levels[2]").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static validation of a Run. It does not mutate r.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	if strings.TrimSpace(r.Namespace) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "namespace",
			Message:  "namespace must not be empty",
		})
	}
	if strings.TrimSpace(r.Columns) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "columns",
			Message:  "columns must name a column mapping file",
		})
	}

	issues = append(issues, validateMatrix(r)...)
	issues = append(issues, validateSource(r.Source)...)
	issues = append(issues, validateRegistry(r.Registry)...)
	issues = append(issues, validateStorage(r.Storage)...)
	issues = append(issues, validateMetrics(r.Metrics)...)

	return issues
}

func validateMatrix(r Run) []Issue {
	var issues []Issue

	if len(r.Jurisdictions) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "jurisdictions",
			Message:  "at least one jurisdiction is required",
		})
	}
	for i, j := range r.Jurisdictions {
		if !isDigits(j, 2) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("jurisdictions[%d]", i),
				Message:  fmt.Sprintf("jurisdiction %q is not a two-digit FIPS code", j),
			})
		}
	}

	if len(r.Levels) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "levels",
			Message:  "at least one level is required",
		})
	}
	for i, l := range r.Levels {
		if _, err := geography.ParseLevel(l); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("levels[%d]", i),
				Message:  err.Error(),
			})
		}
	}

	if len(r.Years) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "years",
			Message:  "at least one year is required",
		})
	}
	for i, y := range r.Years {
		if !isDigits(y, 4) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("years[%d]", i),
				Message:  fmt.Sprintf("year %q is not a four-digit year", y),
			})
		}
	}
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(s.File.Dir) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.dir",
				Message:  "file source requires a cache directory",
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URLTemplate) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url_template",
				Message:  "http source requires a url_template",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q (want file or http)", s.Kind),
		})
	}
	return issues
}

func validateRegistry(r Registry) []Issue {
	var issues []Issue
	for i, ds := range r.MissingDatasets {
		if _, err := geography.ParseLevel(ds.Level); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("registry.missing_datasets[%d].level", i),
				Message:  fmt.Sprintf("entry can never match: %v", err),
			})
		}
	}
	for i, id := range r.NameExceptions {
		if !strings.HasPrefix(id, geography.TribalArea.String()+":") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("registry.name_exceptions[%d]", i),
				Message:  fmt.Sprintf("%q is not a tribal area geoid; only tribal collisions are merged", id),
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"memory":   {},
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if s.Kind != "memory" && strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty (or set " + EnvDSN + ")",
		})
	}
	if s.DB.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "pushgateway", "datadog":
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     "metrics.backend",
		Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
	}}
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
