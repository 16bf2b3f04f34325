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
	"strconv"
	"strings"
	"time"

	"csstcli/internal/config"
	apperrors "csstcli/internal/errors"
	"csstcli/internal/experiment"
	"csstcli/internal/files"
	"csstcli/internal/infrastructure"
	"csstcli/internal/processor"
	"csstcli/internal/validation"
	"csstcli/pkg/contracts/domain"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitInvalid = 3
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	path            string
	skipTuneAndLoad bool
	programDuration bool
	skipHours       float64
	bucketWidth     float64
	tolerance       float64
	temps           []float64
	tempRange       float64
	noBuckets       bool
	logLevel        string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	var temps string
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: inspect [flags] <export.csv | directory>")
		fs.PrintDefaults()
	}
	fs.BoolVar(&o.skipTuneAndLoad, "skip-tune-load", false, "drop samples recorded during solvent tune and sample load")
	fs.BoolVar(&o.programDuration, "program-duration", false, "add the tune and load hold times to the skipped period")
	fs.Float64Var(&o.skipHours, "skip-hours", config.DefaultSkipHours, "hours skipped from the start of the run")
	fs.Float64Var(&o.bucketWidth, "bucket-width", config.DefaultBucketWidth, "temperature bucket width in degrees")
	fs.Float64Var(&o.tolerance, "tolerance", 0, "equality tolerance when -range is 0")
	fs.StringVar(&temps, "temps", "", "comma separated temperatures to query instead of every degree")
	fs.Float64Var(&o.tempRange, "range", config.DefaultBucketWidth, "window width used with -temps")
	fs.BoolVar(&o.noBuckets, "no-buckets", false, "print metadata and reactors only")
	fs.StringVar(&o.logLevel, "log-level", "warn", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected one file or directory, got %d arguments", fs.NArg())
	}
	o.path = fs.Arg(0)

	if temps != "" {
		for _, field := range strings.Split(temps, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid temperature %q: %w", field, err)
			}
			o.temps = append(o.temps, v)
		}
	}
	return o, nil
}

// resolveInput returns path itself, or the most recently modified export
// when path is a directory
func resolveInput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("cannot access %s: %v", path, err))
	}
	if !info.IsDir() {
		return path, nil
	}
	found, err := files.NewDiscovery("").FindCSVFiles(path)
	if err != nil {
		return "", err
	}
	latest, ok := files.GetLatestFile(found)
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("export file in %s", path))
	}
	return latest.Path, nil
}

type reactorOutput struct {
	Label         string                        `json:"label"`
	ReactorNumber int                           `json:"reactor_number"`
	Polymer       string                        `json:"polymer"`
	Solvent       string                        `json:"solvent"`
	Conc          domain.PropertyValue          `json:"conc"`
	Buckets       []domain.ProcessedTemperature `json:"buckets,omitempty"`
}

type inspectOutput struct {
	File              string                     `json:"file"`
	Version           string                     `json:"version"`
	ExperimentDetails string                     `json:"experiment_details"`
	ExperimentNumber  string                     `json:"experiment_number"`
	Experimenter      string                     `json:"experimenter"`
	Project           string                     `json:"project"`
	LabJournal        string                     `json:"lab_journal"`
	Description       []string                   `json:"description"`
	StartOfExperiment time.Time                  `json:"start_of_experiment"`
	PolymerIDs        map[string]string          `json:"polymer_ids,omitempty"`
	SolventIDs        map[string]string          `json:"solvent_ids,omitempty"`
	BottomStirRate    *domain.PropertyValue      `json:"bottom_stir_rate,omitempty"`
	ProgramHash       string                     `json:"program_hash,omitempty"`
	Program           *domain.TemperatureProgram `json:"temperature_program,omitempty"`
	TuneAndLoadHours  float64                    `json:"tune_and_load_hours"`
	Samples           int                        `json:"samples"`
	StartIndex        int                        `json:"start_index"`
	Reactors          []reactorOutput            `json:"reactors"`
}

func inspect(ctx context.Context, o *options, logger *slog.Logger) (*inspectOutput, error) {
	path, err := resolveInput(o.path)
	if err != nil {
		return nil, err
	}
	if err := validation.NewFileValidator(logger).ValidateCSVFile(path); err != nil {
		return nil, err
	}
	exp, err := experiment.NewLoader(logger).LoadFromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := validation.NewExperimentValidator().Validate(exp); err != nil {
		return nil, err
	}

	out := &inspectOutput{
		File:              path,
		Version:           exp.Version,
		ExperimentDetails: exp.ExperimentDetails,
		ExperimentNumber:  exp.ExperimentNumber,
		Experimenter:      exp.Experimenter,
		Project:           exp.Project,
		LabJournal:        exp.LabJournal,
		Description:       exp.Description,
		StartOfExperiment: exp.StartOfExperiment,
		PolymerIDs:        exp.PolymerIDs,
		SolventIDs:        exp.SolventIDs,
		BottomStirRate:    exp.BottomStirRate,
		Program:           exp.TemperatureProgram,
		Reactors:          make([]reactorOutput, 0, len(exp.Reactors)),
	}
	out.Samples, _ = exp.SeriesLength()
	if exp.TemperatureProgram != nil {
		if out.ProgramHash, err = exp.TemperatureProgram.Hash(); err != nil {
			return nil, err
		}
	}
	if out.TuneAndLoadHours, err = processor.TuneAndLoadDuration(exp.TemperatureProgram); err != nil {
		return nil, err
	}

	proc := processor.New(logger, processor.Options{BucketWidth: o.bucketWidth, Tolerance: o.tolerance})
	for _, reactor := range exp.Reactors {
		if o.skipTuneAndLoad {
			if o.programDuration {
				out.StartIndex, err = processor.FindIndexAfterProgramTuneAndLoad(reactor, o.skipHours)
				if err != nil {
					return nil, err
				}
			} else {
				out.StartIndex = processor.FindIndexAfterSampleTuneAndLoad(reactor, o.skipHours)
			}
		}

		ro := reactorOutput{
			Label:         reactor.String(),
			ReactorNumber: reactor.ReactorNumber,
			Polymer:       reactor.Polymer,
			Solvent:       reactor.Solvent,
			Conc:          reactor.Conc,
		}
		switch {
		case o.noBuckets:
		case len(o.temps) > 0:
			ro.Buckets = proc.ProcessReactorTransmissionAtTempsFrom(reactor, out.StartIndex, o.temps, o.tempRange)
		default:
			ro.Buckets = proc.ProcessReactorFrom(reactor, out.StartIndex).Temperatures
		}
		out.Reactors = append(out.Reactors, ro)
	}
	return out, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger := infrastructure.NewLogger(stderr, o.logLevel, "text")
	ctx = infrastructure.EnsureTraceID(ctx)

	out, err := inspect(ctx, o, logger)
	if err != nil {
		fmt.Fprintf(stderr, "inspect %s: %v\n", o.path, err)
		if t, ok := apperrors.TypeOf(err); ok && t == apperrors.ErrTypeValidation {
			return exitInvalid
		}
		return exitFailed
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "failed to write output: %v\n", err)
		return exitFailed
	}
	return exitOK
}
