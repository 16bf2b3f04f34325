package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"csstcli/internal/archive"
	"csstcli/internal/batch"
	"csstcli/internal/config"
	apperrors "csstcli/internal/errors"
	"csstcli/internal/infrastructure"
	"csstcli/internal/processor"
	"csstcli/internal/storage"
	"csstcli/internal/storage/sqlstore"
)

// Application wires configuration, telemetry, storage and the archive into
// a batch runner
type Application struct {
	Config     *config.Config
	Logger     *slog.Logger
	OTel       *infrastructure.OTelProviders
	Metrics    *infrastructure.BatchMetrics
	Store      storage.Store
	Repository *storage.Repository
	Archive    archive.Store
	Runner     *batch.Runner
}

// Options overrides parts of the wiring, mostly for tests and the CLIs
type Options struct {
	// Logger replaces the logger built from cfg.Logging
	Logger *slog.Logger
	// OTel replaces the telemetry config derived from cfg.Telemetry
	OTel *infrastructure.OTelConfig
}

// New builds an application from cfg. Resources opened before a failure
// are released.
func New(ctx context.Context, cfg *config.Config, opts Options) (app *Application, err error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError("config is nil", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	logger.InfoContext(ctx, "application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	app = &Application{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
			app = nil
		}
	}()

	otelCfg := opts.OTel
	if otelCfg == nil {
		otelCfg = &infrastructure.OTelConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: config.AppVersion,
			TraceExporter:  cfg.Telemetry.Traces,
			EnableMetrics:  true,
		}
	}
	app.OTel, err = infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	app.Metrics, err = infrastructure.CreateBatchMetrics(app.OTel.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app.Store, err = OpenStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	if app.Store != nil {
		if cfg.Storage.NamesFile != "" {
			if err := RegisterNamesFile(ctx, app.Store, cfg.Storage.NamesFile); err != nil {
				return nil, err
			}
		}
		app.Repository = storage.NewRepository(app.Store, nil, logger)
	}

	app.Archive, err = archive.Open(ctx, ArchiveConfig(cfg.Archive))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	app.Runner = batch.NewRunner(BatchOptions(cfg), batch.Deps{
		Processor:  processor.New(logger, ProcessorOptions(cfg.Processing)),
		Repository: app.Repository,
		Archive:    app.Archive,
		Metrics:    app.Metrics,
		Tracer:     app.OTel.Tracer,
		Logger:     logger,
	})

	logger.DebugContext(ctx, "application wired",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("archive", cfg.Archive.Driver),
		slog.String("traces", cfg.Telemetry.Traces))
	return app, nil
}

// Run processes the configured input directory once
func (a *Application) Run(ctx context.Context) (*batch.Report, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	report, err := a.Runner.Run(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "batch run failed", slog.String("error", err.Error()))
	}
	return report, err
}

// Close writes the metrics textfile and releases telemetry and the store
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.OTel != nil {
		if path := a.Config.Telemetry.MetricsFile; path != "" && a.OTel.Registry != nil {
			if err := a.OTel.WriteMetricsFile(path); err != nil {
				errs = append(errs, fmt.Errorf("write metrics file: %w", err))
			}
		}
		if err := a.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// OpenStore returns the configured experiment store, or nil for "none"
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
		store, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown storage driver %q", cfg.Driver), nil)
	}
}

// ArchiveConfig maps the config section onto the archive package
func ArchiveConfig(cfg config.ArchiveConfig) archive.Config {
	return archive.Config{
		Driver:          archive.Driver(cfg.Driver),
		Dir:             cfg.Dir,
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		PathStyle:       cfg.PathStyle,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Prefix:          cfg.Prefix,
	}
}

// ProcessorOptions maps the bucketing settings
func ProcessorOptions(cfg config.ProcessingConfig) processor.Options {
	return processor.Options{
		BucketWidth: cfg.BucketWidth,
		Tolerance:   cfg.Tolerance,
	}
}

// BatchOptions maps paths, processing and export settings onto a run
func BatchOptions(cfg *config.Config) batch.Options {
	return batch.Options{
		InputDir:           cfg.Paths.InputDir,
		OutputDir:          cfg.Paths.OutputDir,
		SummaryPath:        cfg.SummaryPath(),
		ProcessedDir:       cfg.Paths.ProcessedDir,
		Pattern:            cfg.Processing.Pattern,
		Recursive:          cfg.Processing.Recursive,
		Workers:            cfg.Processing.Workers,
		FailFast:           cfg.Processing.FailFast,
		FileTimeout:        cfg.Processing.Timeout,
		SkipTuneAndLoad:    cfg.Processing.SkipTuneAndLoad,
		SkipHours:          cfg.Processing.SkipHours,
		UseProgramDuration: cfg.Processing.UseProgramDuration,
		Export: batch.ExportOptions{
			Processed: cfg.Export.Processed,
			Series:    cfg.Export.Series,
			Workbook:  cfg.Export.Workbook,
			Summary:   cfg.Export.Summary,
		},
	}
}

// NamesFile lists material aliases by external identifier:
//
//	polymers:
//	  "102": [PEO, Poly(ethylene oxide)]
//	solvents:
//	  "9": [MeOH, methanol]
type NamesFile struct {
	Polymers map[string][]string `yaml:"polymers"`
	Solvents map[string][]string `yaml:"solvents"`
}

// RegisterNamesFile reads path and registers every alias with store
func RegisterNamesFile(ctx context.Context, store storage.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("failed to read names file %s", path), err)
	}
	var nf NamesFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("failed to parse names file %s", path), err)
	}

	for _, group := range []struct {
		kind  storage.NameKind
		names map[string][]string
	}{
		{storage.NamePolymer, nf.Polymers},
		{storage.NameSolvent, nf.Solvents},
	} {
		ids := make([]string, 0, len(group.names))
		for id := range group.names {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := storage.RegisterName(ctx, store, group.kind, id, group.names[id]...); err != nil {
				return fmt.Errorf("register %s %s: %w", group.kind, id, err)
			}
		}
	}
	return nil
}
