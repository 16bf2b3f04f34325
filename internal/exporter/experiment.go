package exporter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"csstcli/pkg/contracts/domain"
)

// ProcessedHeaders are the columns of a processed-reactor export
var ProcessedHeaders = []string{
	"file_name", "reactor", "polymer", "solvent", "concentration", "concentration_unit",
	"average_temperature", "temperature_range", "average_transmission",
	"median_transmission", "transmission_std", "sample_count",
}

// SummaryHeaders are the columns of the batch summary, one row per run
var SummaryHeaders = []string{
	"file_name", "version", "experiment_number", "experimenter", "project",
	"start_of_experiment", "reactors", "samples", "buckets", "program_hash",
}

// ExperimentExporter writes runs and their processed buckets as CSV
type ExperimentExporter struct {
	tables *TableWriter
}

// NewExperimentExporter writes relative paths under outputDir
func NewExperimentExporter(outputDir string, logger *slog.Logger) *ExperimentExporter {
	return &ExperimentExporter{tables: NewTableWriter(outputDir, logger)}
}

// BaseName is the run's file name without directory or extension
func BaseName(exp *domain.Experiment) string {
	name := filepath.Base(exp.FileName)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ProcessedRows flattens processed reactors into CSV rows
func ProcessedRows(fileName string, processed []domain.ProcessedReactor) [][]string {
	var rows [][]string
	for _, pr := range processed {
		r := pr.UnprocessedReactor
		for _, b := range pr.Temperatures {
			rows = append(rows, []string{
				fileName,
				formatInt(r.ReactorNumber),
				r.Polymer,
				r.Solvent,
				formatFloat(r.Conc.Value),
				r.Conc.Unit,
				formatFloat(b.AverageTemperature),
				formatFloat(b.TemperatureRange),
				formatFloat(b.AverageTransmission),
				formatFloat(b.MedianTransmission),
				formatFloat(b.TransmissionStd),
				formatInt(b.SampleCount),
			})
		}
	}
	return rows
}

// ExportProcessed writes "<run>_processed.csv" and returns its path
func (e *ExperimentExporter) ExportProcessed(exp *domain.Experiment, processed []domain.ProcessedReactor) (string, error) {
	path := BaseName(exp) + "_processed.csv"
	if err := e.tables.Write(path, Table{Header: ProcessedHeaders, Rows: ProcessedRows(exp.FileName, processed)}); err != nil {
		return "", fmt.Errorf("failed to export processed reactors for %s: %w", exp.FileName, err)
	}
	return e.tables.Path(path), nil
}

// SeriesHeaders names the time-aligned columns of exp with their units
func SeriesHeaders(exp *domain.Experiment) []string {
	label := func(name string, p *domain.PropertyValues) string {
		if p == nil {
			return name
		}
		return fmt.Sprintf("%s [%s]", name, p.Unit)
	}
	headers := []string{
		label("time", exp.TimeSinceExperimentStart),
		label("set_temperature", exp.SetTemperature),
		label("actual_temperature", exp.ActualTemperature),
		label("stir_rate", exp.StirRates),
	}
	for _, r := range exp.Reactors {
		headers = append(headers, label(fmt.Sprintf("reactor%d_transmission", r.ReactorNumber), r.Transmission))
	}
	return headers
}

// seriesColumns returns the columns in SeriesHeaders order
func seriesColumns(exp *domain.Experiment) []*domain.PropertyValues {
	cols := []*domain.PropertyValues{exp.TimeSinceExperimentStart, exp.SetTemperature, exp.ActualTemperature, exp.StirRates}
	for _, r := range exp.Reactors {
		cols = append(cols, r.Transmission)
	}
	return cols
}

// seriesRow returns sample i of every column, empty where a column is short
func seriesRow(cols []*domain.PropertyValues, i int) []string {
	row := make([]string, len(cols))
	for c, col := range cols {
		if i < col.Len() {
			row[c] = formatFloat(col.Values[i])
		}
	}
	return row
}

func seriesLength(cols []*domain.PropertyValues) int {
	n := 0
	for _, c := range cols {
		if c.Len() > n {
			n = c.Len()
		}
	}
	return n
}

// ExportSeries streams the raw time-aligned series to "<run>_series.csv"
func (e *ExperimentExporter) ExportSeries(exp *domain.Experiment) (string, error) {
	path := BaseName(exp) + "_series.csv"
	sw, err := e.tables.OpenStream(path, SeriesHeaders(exp))
	if err != nil {
		return "", err
	}
	cols := seriesColumns(exp)
	n := seriesLength(cols)
	for i := 0; i < n; i++ {
		if err := sw.Write(seriesRow(cols, i)); err != nil {
			_ = sw.Close()
			return "", fmt.Errorf("failed to write sample %d of %s: %w", i, exp.FileName, err)
		}
	}
	if err := sw.Close(); err != nil {
		return "", err
	}
	return e.tables.Path(path), nil
}

// SummaryRow describes one run for the batch summary
func SummaryRow(exp *domain.Experiment, processed []domain.ProcessedReactor) []string {
	buckets := 0
	for _, pr := range processed {
		buckets += len(pr.Temperatures)
	}
	hash := ""
	if exp.TemperatureProgram != nil {
		hash, _ = exp.TemperatureProgram.Hash()
	}
	return []string{
		exp.FileName,
		exp.Version,
		exp.ExperimentNumber,
		exp.Experimenter,
		exp.Project,
		formatTime(exp.StartOfExperiment),
		formatInt(len(exp.Reactors)),
		formatInt(exp.TimeSinceExperimentStart.Len()),
		formatInt(buckets),
		hash,
	}
}

// AppendSummary adds one row to the batch summary file, creating it with a
// header on first use
func (e *ExperimentExporter) AppendSummary(summaryPath string, exp *domain.Experiment, processed []domain.ProcessedReactor) error {
	return e.tables.Append(summaryPath, Table{
		Header: SummaryHeaders,
		Rows:   [][]string{SummaryRow(exp, processed)},
	})
}
