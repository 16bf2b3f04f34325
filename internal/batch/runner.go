package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"csstcli/internal/archive"
	apperrors "csstcli/internal/errors"
	"csstcli/internal/experiment"
	"csstcli/internal/exporter"
	"csstcli/internal/files"
	"csstcli/internal/infrastructure"
	"csstcli/internal/processor"
	"csstcli/internal/storage"
	"csstcli/internal/validation"
	"csstcli/pkg/contracts/domain"
)

// ExportOptions toggles the outputs written per file
type ExportOptions struct {
	Processed bool
	Series    bool
	Workbook  bool
	Summary   bool
}

// Options configures a batch run
type Options struct {
	InputDir  string
	OutputDir string
	// SummaryPath is appended with one row per successful file
	SummaryPath string
	// ProcessedDir receives inputs after success, empty keeps them in place
	ProcessedDir string
	// Pattern filters discovered files by base name, empty accepts all
	Pattern   string
	Recursive bool
	Workers   int
	FailFast  bool
	// FileTimeout bounds the handling of one file, zero means no limit
	FileTimeout time.Duration

	SkipTuneAndLoad    bool
	SkipHours          float64
	UseProgramDuration bool

	Export ExportOptions
}

// Deps are the collaborators of a runner. Nil Repository and Archive
// disable storing and archiving.
type Deps struct {
	Loader     *experiment.Loader
	Processor  *processor.Processor
	Repository *storage.Repository
	Archive    archive.Store
	Metrics    *infrastructure.BatchMetrics
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// FileResult is the outcome of one file
type FileResult struct {
	Path         string        `json:"path"`
	FileName     string        `json:"file_name"`
	Reactors     int           `json:"reactors"`
	Buckets      int           `json:"buckets"`
	StartIndex   int           `json:"start_index"`
	ExperimentID int64         `json:"experiment_id,omitempty"`
	Added        bool          `json:"added"`
	Outputs      []string      `json:"outputs,omitempty"`
	ArchiveKey   string        `json:"archive_key,omitempty"`
	MovedTo      string        `json:"moved_to,omitempty"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`

	exp       *domain.Experiment
	processed []domain.ProcessedReactor
}

// Report summarises a run
type Report struct {
	TraceID   string       `json:"trace_id"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Err joins the errors of the failed files
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}
	return errors.Join(errs...)
}

// Runner processes directories of exports
type Runner struct {
	opts       Options
	discovery  *files.Discovery
	fileMgr    *files.Manager
	loader     *experiment.Loader
	validator  *validation.ExperimentValidator
	fileCheck  *validation.FileValidator
	processor  *processor.Processor
	csv        *exporter.ExperimentExporter
	workbook   *exporter.WorkbookExporter
	repository *storage.Repository
	archive    archive.Store
	metrics    *infrastructure.BatchMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewRunner wires a runner. Missing loader, processor and tracer get
// defaults.
func NewRunner(opts Options, deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Loader == nil {
		deps.Loader = experiment.NewLoader(logger)
	}
	if deps.Processor == nil {
		deps.Processor = processor.New(logger, processor.DefaultOptions())
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer("csstcli/batch")
	}

	return &Runner{
		opts:       opts,
		discovery:  files.NewDiscovery(""),
		fileMgr:    files.NewManager("", logger),
		loader:     deps.Loader,
		validator:  validation.NewExperimentValidator(),
		fileCheck:  validation.NewFileValidator(logger),
		processor:  deps.Processor,
		csv:        exporter.NewExperimentExporter(opts.OutputDir, logger),
		workbook:   exporter.NewWorkbookExporter(opts.OutputDir, logger),
		repository: deps.Repository,
		archive:    deps.Archive,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		logger:     infrastructure.WithComponent(logger, "batch"),
	}
}

// Discover lists the export files of the input directory
func (r *Runner) Discover() ([]files.FileInfo, error) {
	var (
		found []files.FileInfo
		err   error
	)
	if r.opts.Recursive {
		found, err = r.discovery.FindCSVFilesRecursive(r.opts.InputDir)
	} else {
		found, err = r.discovery.FindCSVFiles(r.opts.InputDir)
	}
	if err != nil {
		return nil, err
	}
	if r.opts.Pattern == "" {
		return found, nil
	}

	filtered := found[:0]
	for _, f := range found {
		ok, err := filepath.Match(r.opts.Pattern, f.Name)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("invalid pattern %q", r.opts.Pattern), err)
		}
		if ok {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// Run handles every discovered file. The returned error is set only when
// the run itself failed: discovery, output setup, cancellation or a file
// failure under FailFast. Per-file failures are in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx = infrastructure.WithRunID(ctx, infrastructure.GetTraceID(ctx))
	report := &Report{TraceID: infrastructure.GetTraceID(ctx)}

	if _, err := r.fileCheck.ValidateInputDirectory(r.opts.InputDir, ""); err != nil {
		return report, err
	}
	if err := r.fileCheck.ValidateOutputDirectory(r.opts.OutputDir); err != nil {
		return report, err
	}
	found, err := r.Discover()
	if err != nil {
		return report, err
	}
	if len(found) == 0 {
		r.logger.WarnContext(ctx, "no export files found", slog.String("input_dir", r.opts.InputDir))
		return report, nil
	}

	r.logger.InfoContext(ctx, "batch started",
		slog.Int("files", len(found)),
		slog.Int("workers", r.opts.Workers))

	results := make([]FileResult, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, f := range found {
		i, f := i, f
		g.Go(func() error {
			results[i] = r.ProcessFile(gctx, f.Path)
			if results[i].Err != nil && r.opts.FailFast {
				return results[i].Err
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	for i := range results {
		res := &results[i]
		if res.Err == nil {
			r.finish(ctx, res)
		}
		if res.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Files = append(report.Files, *res)
	}

	r.logger.InfoContext(ctx, "batch finished",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed))
	return report, runErr
}

// finish runs the order-sensitive steps of a successful file
func (r *Runner) finish(ctx context.Context, res *FileResult) {
	if r.opts.Export.Summary && r.opts.SummaryPath != "" {
		if err := r.csv.AppendSummary(r.opts.SummaryPath, res.exp, res.processed); err != nil {
			res.Err = fmt.Errorf("append summary: %w", err)
			return
		}
	}
	if r.opts.ProcessedDir != "" {
		moved, err := r.fileMgr.MoveInto(res.Path, r.opts.ProcessedDir)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to move processed file",
				slog.String("file_path", res.Path),
				slog.String("error", err.Error()))
			return
		}
		res.MovedTo = moved
	}
}

// ProcessFile loads, validates, buckets, exports, stores and archives one
// export. The summary row and the move are left to Run.
func (r *Runner) ProcessFile(ctx context.Context, path string) FileResult {
	started := time.Now()
	res := FileResult{Path: path, FileName: filepath.Base(path)}

	if infrastructure.GetRunID(ctx) == "" {
		ctx = infrastructure.WithRunID(ctx, infrastructure.GetTraceID(ctx))
	}
	ctx = infrastructure.ContextWithTraceID(ctx)
	logger := r.logger.With(slog.String("file_path", path))

	if r.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.FileTimeout)
		defer cancel()
	}
	ctx, span := r.tracer.Start(ctx, "batch.file", trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	res.Err = r.processFile(ctx, logger, &res)
	res.Duration = time.Since(started)

	outcome := "ok"
	if res.Err != nil {
		infrastructure.RecordError(ctx, res.Err)
		outcome = "error"
		if t, ok := apperrors.TypeOf(res.Err); ok {
			outcome = string(t)
		}
		infrastructure.WithError(logger, res.Err).ErrorContext(ctx, "file failed",
			slog.String("outcome", outcome))
	} else {
		logger.InfoContext(ctx, "file processed",
			slog.Int("reactors", res.Reactors),
			slog.Int("buckets", res.Buckets),
			slog.Duration("duration", res.Duration))
	}
	r.metrics.RecordFile(ctx, outcome, res.Duration, res.Reactors, res.Buckets)
	return res
}

func (r *Runner) processFile(ctx context.Context, logger *slog.Logger, res *FileResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.fileCheck.ValidateCSVFile(res.Path); err != nil {
		return err
	}

	exp, err := r.load(ctx, res.Path)
	if err != nil {
		return err
	}
	if err := r.validator.Validate(exp); err != nil {
		return err
	}
	res.exp = exp
	res.Reactors = len(exp.Reactors)

	start, err := r.startIndex(exp)
	if err != nil {
		return err
	}
	res.StartIndex = start

	_, span := r.tracer.Start(ctx, "processor.process")
	processed := make([]domain.ProcessedReactor, 0, len(exp.Reactors))
	for _, reactor := range exp.Reactors {
		pr := r.processor.ProcessReactorFrom(reactor, start)
		res.Buckets += len(pr.Temperatures)
		processed = append(processed, pr)
	}
	span.End()
	res.processed = processed

	if err := r.export(exp, processed, res); err != nil {
		return err
	}
	if err := r.store(ctx, logger, exp, res); err != nil {
		return err
	}
	return r.archiveRaw(ctx, logger, exp, res)
}

func (r *Runner) load(ctx context.Context, path string) (*domain.Experiment, error) {
	ctx, span := r.tracer.Start(ctx, "experiment.load")
	defer span.End()

	exp, err := r.loader.LoadFromFile(ctx, path)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("experiment.version", exp.Version),
		attribute.Int("experiment.reactors", len(exp.Reactors)))
	return exp, nil
}

// startIndex is the first sample kept for bucketing. The series are
// shared, so any reactor gives the same index.
func (r *Runner) startIndex(exp *domain.Experiment) (int, error) {
	if !r.opts.SkipTuneAndLoad || len(exp.Reactors) == 0 {
		return 0, nil
	}
	reactor := exp.Reactors[0]
	if r.opts.UseProgramDuration {
		return processor.FindIndexAfterProgramTuneAndLoad(reactor, r.opts.SkipHours)
	}
	return processor.FindIndexAfterSampleTuneAndLoad(reactor, r.opts.SkipHours), nil
}

func (r *Runner) export(exp *domain.Experiment, processed []domain.ProcessedReactor, res *FileResult) error {
	if r.opts.Export.Processed {
		path, err := r.csv.ExportProcessed(exp, processed)
		if err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, path)
	}
	if r.opts.Export.Series {
		path, err := r.csv.ExportSeries(exp)
		if err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, path)
	}
	if r.opts.Export.Workbook {
		path, err := r.workbook.Export(exp, processed)
		if err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, path)
	}
	return nil
}

func (r *Runner) store(ctx context.Context, logger *slog.Logger, exp *domain.Experiment, res *FileResult) error {
	if r.repository == nil {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "storage.add_experiment")
	defer span.End()

	id, added, err := r.repository.AddExperiment(ctx, exp)
	if err != nil {
		return err
	}
	res.ExperimentID = id
	res.Added = added
	r.metrics.RecordStored(ctx, added)
	if !added {
		logger.InfoContext(ctx, "experiment already stored", slog.Int64("experiment_id", id))
	}
	return nil
}

func (r *Runner) archiveRaw(ctx context.Context, logger *slog.Logger, exp *domain.Experiment, res *FileResult) error {
	if r.archive == nil {
		return nil
	}
	info, err := archive.ArchiveFile(ctx, r.archive, res.Path, exp)
	if errors.Is(err, archive.ErrExists) {
		logger.DebugContext(ctx, "raw export already archived", slog.String("key", archive.KeyFor(exp)))
		res.ArchiveKey = archive.KeyFor(exp)
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	res.ArchiveKey = info.Key
	r.metrics.RecordArchived(ctx, string(r.archive.Driver()))
	return nil
}
