// Command geoload ingests census geography layers into a data store.
//
// A run file names jurisdictions, levels and years; every combination is
// processed in turn. Per-layer data errors are logged and the run moves on;
// an environment error stops the run.
//
// Exit codes: 0 all layers loaded or skipped, 1 at least one layer failed or
// the configuration is invalid, 2 the run was aborted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"geoetl/internal/config"
	"geoetl/internal/metrics"
	"geoetl/internal/metrics/datadog"
	"geoetl/internal/metrics/prompush"

	// register all storage backends with the storage factory.
	_ "geoetl/internal/storage/all"
)

const defaultPushgatewayURL = "http://localhost:9091"

func main() {
	var (
		cfgPath           string
		envFile           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		singleFile        string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/runs/sample.json", "run config JSON path")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend (pushgateway, datadog, none); overrides METRICS_BACKEND")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL; overrides PUSHGATEWAY_URL")
	flag.StringVar(&singleFile, "file", "", "ingest this one cached layer file instead of the configured source")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && *verbose {
		log.Printf("env: %s not loaded: %v", envFile, err)
	}

	run, err := loadRun(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	run.ApplyEnv(os.Getenv)
	if metricsBackendFlg != "" {
		run.Metrics.Backend = metricsBackendFlg
	}
	if pushGatewayURLFlg != "" {
		run.Metrics.PushgatewayURL = pushGatewayURLFlg
	}

	issues := config.ValidateRun(run)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s\n", iss.Error())
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	flush := setupMetrics(run, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	start := time.Now()
	sum, err := execute(ctx, run, singleFile)
	stop()
	flush()

	log.Printf("geoload: loaded=%d skipped=%d failed=%d in %s",
		sum.loaded, sum.skipped, sum.failed, time.Since(start).Truncate(time.Millisecond))
	os.Exit(exitCode(sum, err))
}

func loadRun(path string) (config.Run, error) {
	var run config.Run
	f, err := os.Open(path)
	if err != nil {
		return run, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&run); err != nil {
		return run, fmt.Errorf("decode config %s: %w", path, err)
	}
	return run, nil
}

// setupMetrics installs the configured backend and returns its flush func.
func setupMetrics(run config.Run, verbose bool) func() {
	jobName := run.Job
	if jobName == "" {
		jobName = "geoetl"
	}

	var (
		b   metrics.Backend
		err error
	)
	switch run.Metrics.Backend {
	case "pushgateway":
		gwURL := run.Metrics.PushgatewayURL
		if gwURL == "" {
			gwURL = defaultPushgatewayURL
		}
		b, err = prompush.NewBackend(jobName, gwURL)
		if err == nil {
			log.Printf("metrics: url=%v, backend=pushgateway, job_name=%v", gwURL, jobName)
		}
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       run.Metrics.DatadogAddr,
			Namespace:  "geoetl.",
			GlobalTags: []string{"job:" + jobName},
		})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=datadog, job_name=%v", run.Metrics.DatadogAddr, jobName)
		}
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", run.Metrics.Backend)
		}
		return func() {}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", run.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", run.Metrics.Backend, err)
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
