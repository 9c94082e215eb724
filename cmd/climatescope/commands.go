package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/climatescope-etl/internal/adapter/filestore"
	httpadapter "github.com/couchcryptid/climatescope-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climatescope-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climatescope-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climatescope-etl/internal/config"
	"github.com/couchcryptid/climatescope-etl/internal/inspect"
	"github.com/couchcryptid/climatescope-etl/internal/observability"
	"github.com/couchcryptid/climatescope-etl/internal/pipeline"
)

// newMetrics registers collectors on the default registry; tests swap it for
// an isolated registry.
var newMetrics = observability.NewMetrics

// catalogCacheEntries bounds the parsed tables the serve command keeps in memory.
const catalogCacheEntries = 8

type command struct {
	summary string
	run     func(cfg *config.Config, args []string, stdout, stderr io.Writer) int
}

var commandOrder = []string{"clean", "aggregate", "extremes", "run", "inspect", "serve"}

var commands = map[string]command{
	"clean":     {summary: "clean the raw CSV", run: stageCommand("clean")},
	"aggregate": {summary: "aggregate the cleaned CSV by month and season", run: stageCommand("aggregate")},
	"extremes":  {summary: "flag extreme months from the monthly CSV", run: stageCommand("extremes")},
	"run":       {summary: "run every stage and write the run manifest", run: runCommand},
	"inspect":   {summary: "write a Markdown profile of the raw CSV", run: inspectCommand},
	"serve":     {summary: "serve the artifacts over a read-only HTTP API", run: serveCommand},
}

// newFlagSet binds the path and threshold overrides shared by every command.
func newFlagSet(name string, cfg *config.Config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Paths.Raw, "raw", cfg.Paths.Raw, "raw input CSV")
	fs.StringVar(&cfg.Paths.Cleaned, "cleaned", cfg.Paths.Cleaned, "cleaned CSV")
	fs.StringVar(&cfg.Paths.Monthly, "monthly", cfg.Paths.Monthly, "monthly aggregate CSV")
	fs.StringVar(&cfg.Paths.Seasonal, "seasonal", cfg.Paths.Seasonal, "seasonal aggregate CSV")
	fs.StringVar(&cfg.Paths.Extremes, "extremes", cfg.Paths.Extremes, "extremes CSV")
	fs.StringVar(&cfg.Paths.Summary, "summary", cfg.Paths.Summary, "Markdown summary report")
	fs.StringVar(&cfg.Paths.Manifest, "manifest", cfg.Paths.Manifest, "run manifest JSON")
	fs.Float64Var(&cfg.Thresholds.TempZ, "temp-z", cfg.Thresholds.TempZ, "flag months whose |temperature z-score| exceeds this")
	fs.Float64Var(&cfg.Thresholds.PrecipPercentile, "precip-pctile", cfg.Thresholds.PrecipPercentile, "flag months whose precipitation percentile rank reaches this")
	return fs
}

// parseFlags returns a non-negative exit code when the command should stop.
func parseFlags(fs *flag.FlagSet, cfg *config.Config, args []string, stderr io.Writer) int {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return exitUsage
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid thresholds: %v\n", err)
		return exitUsage
	}
	return -1
}

func stageCommand(stage string) func(*config.Config, []string, io.Writer, io.Writer) int {
	return func(cfg *config.Config, args []string, _, stderr io.Writer) int {
		fs := newFlagSet(stage, cfg, stderr)
		if code := parseFlags(fs, cfg, args, stderr); code >= 0 {
			return code
		}

		logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
		metrics := newMetrics()
		p := pipeline.New(filestore.New(), cfg.Paths, cfg.Thresholds, logger, metrics)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var err error
		switch stage {
		case "clean":
			_, err = p.Clean(ctx)
		case "aggregate":
			_, err = p.Aggregate(ctx)
		case "extremes":
			if _, err = p.DetectExtremes(ctx); err == nil {
				if err = p.RecordThresholds(); err != nil {
					logger.Error("update manifest thresholds", "error", err)
				}
			}
		}
		writeTextfile(cfg, metrics, logger)
		if err != nil {
			return exitFatal
		}
		return exitOK
	}
}

func runCommand(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("run", cfg, stderr)
	if code := parseFlags(fs, cfg, args, stderr); code >= 0 {
		return code
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := newMetrics()

	var opts []pipeline.Option
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("open sqlite export store", "error", err)
			return exitFatal
		}
		defer store.Close()
		opts = append(opts, pipeline.WithExporter(store))
	}
	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaExtremesTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(writer))
	}

	p := pipeline.New(filestore.New(), cfg.Paths, cfg.Thresholds, logger, metrics, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)
	writeTextfile(cfg, metrics, logger)
	if err != nil {
		return exitFatal
	}
	fmt.Fprintf(stdout, "run %s %s: %d stages, manifest %s\n",
		report.RunID, report.Status, len(report.Stages), cfg.Paths.Manifest)
	return exitOK
}

func inspectCommand(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("inspect", cfg, stderr)
	if code := parseFlags(fs, cfg, args, stderr); code >= 0 {
		return code
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	store := filestore.New()

	raw, err := store.ReadTable(cfg.Paths.Raw)
	if err != nil {
		logger.Error("read raw dataset", "error", err)
		return exitFatal
	}
	profile, err := inspect.Run(raw)
	if err != nil {
		logger.Error("profile raw dataset", "error", err)
		return exitFatal
	}
	if err := store.WriteText(cfg.Paths.Summary, inspect.Markdown(profile)); err != nil {
		logger.Error("write summary report", "path", cfg.Paths.Summary, "error", err)
		return exitFatal
	}
	logger.Info("summary report written", "path", cfg.Paths.Summary,
		"rows", profile.Rows, "columns", profile.Columns, "date_column", profile.DateColumn)
	fmt.Fprintf(stdout, "Summary written to %s\n", cfg.Paths.Summary)
	return exitOK
}

func serveCommand(cfg *config.Config, args []string, _, stderr io.Writer) int {
	fs := newFlagSet("serve", cfg, stderr)
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	if code := parseFlags(fs, cfg, args, stderr); code >= 0 {
		return code
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	newMetrics()

	reader := filestore.NewCachedReader(filestore.New(), catalogCacheEntries)
	var source httpadapter.ArtifactSource = pipeline.NewCatalog(reader, cfg.Paths)
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("open sqlite store", "error", err)
			return exitFatal
		}
		defer store.Close()
		source = store
		logger.Info("serving artifacts from sqlite", "path", cfg.SQLitePath)
	} else {
		logger.Info("serving artifacts from csv files", "monthly", cfg.Paths.Monthly)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, source, cfg.CORSAllowedOrigins, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("http server error", "error", err)
		return exitFatal
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
		return exitFatal
	}
	logger.Info("shutdown complete")
	return exitOK
}

func writeTextfile(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) {
	if cfg.MetricsTextfile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.MetricsTextfile), 0o755); err != nil {
		logger.Warn("create metrics textfile dir", "error", err)
		return
	}
	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Warn("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
	}
}
