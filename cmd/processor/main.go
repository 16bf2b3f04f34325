package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"csstcli/internal/app"
	"csstcli/internal/batch"
	"csstcli/internal/config"
	"csstcli/internal/infrastructure"
)

// Exit codes
const (
	exitOK      = 0
	exitFatal   = 1
	exitUsage   = 2
	exitPartial = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// flags holds the command line overrides. Only flags given explicitly
// replace configuration values.
type flags struct {
	configFile      string
	inDir           string
	outDir          string
	processedDir    string
	summary         string
	pattern         string
	recursive       bool
	workers         int
	failFast        bool
	skipTuneAndLoad bool
	programDuration bool
	skipHours       float64
	bucketWidth     float64
	storage         string
	dsn             string
	namesFile       string
	archive         string
	archiveDir      string
	series          bool
	workbook        bool
	traces          string
	metricsFile     string
	logLevel        string
	logFormat       string
}

func parseFlags(args []string, stderr io.Writer) (*flags, map[string]bool, error) {
	f := &flags{}
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configFile, "config", "", "YAML config file (defaults to $CSST_CONFIG_FILE or config.yaml)")
	fs.StringVar(&f.inDir, "in", "", "input directory of instrument exports")
	fs.StringVar(&f.outDir, "out", "", "output directory for processed files")
	fs.StringVar(&f.processedDir, "processed-dir", "", "move successfully processed inputs here")
	fs.StringVar(&f.summary, "summary", "", "summary CSV file, relative to the output directory")
	fs.StringVar(&f.pattern, "pattern", "", "base name glob selecting input files")
	fs.BoolVar(&f.recursive, "recursive", false, "walk subdirectories of the input directory")
	fs.IntVar(&f.workers, "workers", 0, "files processed concurrently")
	fs.BoolVar(&f.failFast, "fail-fast", false, "stop at the first failed file")
	fs.BoolVar(&f.skipTuneAndLoad, "skip-tune-load", false, "drop samples recorded during solvent tune and sample load")
	fs.BoolVar(&f.programDuration, "program-duration", false, "add the tune and load hold times to the skipped period")
	fs.Float64Var(&f.skipHours, "skip-hours", 0, "hours skipped from the start of each run")
	fs.Float64Var(&f.bucketWidth, "bucket-width", 0, "temperature bucket width in degrees")
	fs.StringVar(&f.storage, "storage", "", "experiment store: none, memory, sqlite or postgres")
	fs.StringVar(&f.dsn, "dsn", "", "store DSN (SQLite file path or Postgres URL)")
	fs.StringVar(&f.namesFile, "names", "", "YAML file of polymer and solvent aliases")
	fs.StringVar(&f.archive, "archive", "", "raw export archive: none, fs or s3")
	fs.StringVar(&f.archiveDir, "archive-dir", "", "directory of the fs archive")
	fs.BoolVar(&f.series, "series", false, "also export the raw time series")
	fs.BoolVar(&f.workbook, "xlsx", false, "also export an Excel workbook per run")
	fs.StringVar(&f.traces, "traces", "", "trace exporter: none or stdout")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "json or text")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// apply copies the explicitly set flags onto cfg
func (f *flags) apply(cfg *config.Config, set map[string]bool) {
	strs := map[string]struct {
		dst *string
		val string
	}{
		"in":            {&cfg.Paths.InputDir, f.inDir},
		"out":           {&cfg.Paths.OutputDir, f.outDir},
		"processed-dir": {&cfg.Paths.ProcessedDir, f.processedDir},
		"summary":       {&cfg.Paths.SummaryFile, f.summary},
		"pattern":       {&cfg.Processing.Pattern, f.pattern},
		"storage":       {&cfg.Storage.Driver, f.storage},
		"dsn":           {&cfg.Storage.DSN, f.dsn},
		"names":         {&cfg.Storage.NamesFile, f.namesFile},
		"archive":       {&cfg.Archive.Driver, f.archive},
		"archive-dir":   {&cfg.Archive.Dir, f.archiveDir},
		"traces":        {&cfg.Telemetry.Traces, f.traces},
		"metrics-file":  {&cfg.Telemetry.MetricsFile, f.metricsFile},
		"log-level":     {&cfg.Logging.Level, f.logLevel},
		"log-format":    {&cfg.Logging.Format, f.logFormat},
	}
	for name, o := range strs {
		if set[name] {
			*o.dst = o.val
		}
	}

	bools := map[string]struct {
		dst *bool
		val bool
	}{
		"recursive":        {&cfg.Processing.Recursive, f.recursive},
		"fail-fast":        {&cfg.Processing.FailFast, f.failFast},
		"skip-tune-load":   {&cfg.Processing.SkipTuneAndLoad, f.skipTuneAndLoad},
		"program-duration": {&cfg.Processing.UseProgramDuration, f.programDuration},
		"series":           {&cfg.Export.Series, f.series},
		"xlsx":             {&cfg.Export.Workbook, f.workbook},
	}
	for name, o := range bools {
		if set[name] {
			*o.dst = o.val
		}
	}

	if set["workers"] {
		cfg.Processing.Workers = f.workers
	}
	if set["skip-hours"] {
		cfg.Processing.SkipHours = f.skipHours
	}
	if set["bucket-width"] {
		cfg.Processing.BucketWidth = f.bucketWidth
	}
}

func loadConfig(f *flags, set map[string]bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configFile != "" {
		cfg, err = config.LoadFile(f.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	f.apply(cfg, set)
	if err := cfg.ResolvePaths(""); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileOutput adds the error text to a file result
type fileOutput struct {
	batch.FileResult
	Error string `json:"error,omitempty"`
}

type reportOutput struct {
	TraceID   string       `json:"trace_id"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Files     []fileOutput `json:"files"`
}

func writeReport(w io.Writer, report *batch.Report) error {
	out := reportOutput{
		TraceID:   report.TraceID,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Files:     make([]fileOutput, 0, len(report.Files)),
	}
	for _, res := range report.Files {
		fo := fileOutput{FileResult: res}
		if res.Err != nil {
			fo.Error = res.Err.Error()
		}
		out.Files = append(out.Files, fo)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, set, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := loadConfig(f, set)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitFatal
	}

	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "startup failed: %v\n", err)
		return exitFatal
	}
	defer infrastructure.CloseLogFile()
	logger := application.Logger

	report, runErr := application.Run(ctx)
	if err := application.Close(context.Background()); err != nil {
		logger.ErrorContext(ctx, "shutdown failed", slog.String("error", err.Error()))
	}
	if report != nil {
		if err := writeReport(stdout, report); err != nil {
			fmt.Fprintf(stderr, "failed to write report: %v\n", err)
			return exitFatal
		}
	}

	switch {
	case runErr != nil:
		fmt.Fprintf(stderr, "batch failed: %v\n", runErr)
		return exitFatal
	case report != nil && report.Failed > 0:
		return exitPartial
	default:
		return exitOK
	}
}
