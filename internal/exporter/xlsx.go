package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"csstcli/pkg/contracts/domain"
)

// Workbook sheet names
const (
	SheetSummary   = "Summary"
	SheetProgram   = "Program"
	SheetProcessed = "Processed"
	SheetSeries    = "Series"
)

// WorkbookExporter writes one XLSX workbook per run
type WorkbookExporter struct {
	outputDir string
	logger    *slog.Logger
}

// NewWorkbookExporter writes workbooks under outputDir
func NewWorkbookExporter(outputDir string, logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{outputDir: outputDir, logger: logger}
}

// Export writes "<run>.xlsx" with the run metadata, temperature program,
// processed buckets and raw series, and returns its path
func (w *WorkbookExporter) Export(exp *domain.Experiment, processed []domain.ProcessedReactor) (string, error) {
	path := filepath.Join(w.outputDir, BaseName(exp)+".xlsx")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, sheet := range []string{SheetProgram, SheetProcessed, SheetSeries} {
		if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	steps := []func() error{
		func() error { return writeSummarySheet(f, exp) },
		func() error { return writeProgramSheet(f, exp.TemperatureProgram) },
		func() error { return writeProcessedSheet(f, exp.FileName, processed) },
		func() error { return writeSeriesSheet(f, exp) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return "", fmt.Errorf("failed to build workbook for %s: %w", exp.FileName, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Debug("workbook written", slog.String("file_path", path))
	return path, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeSummarySheet(f *excelize.File, exp *domain.Experiment) error {
	rows := [][]interface{}{
		{"file_name", exp.FileName},
		{"version", exp.Version},
		{"experiment_details", exp.ExperimentDetails},
		{"experiment_number", exp.ExperimentNumber},
		{"experimenter", exp.Experimenter},
		{"project", exp.Project},
		{"lab_journal", exp.LabJournal},
		{"start_of_experiment", formatTime(exp.StartOfExperiment)},
	}
	for _, line := range exp.Description {
		rows = append(rows, []interface{}{"description", line})
	}
	if p := exp.BottomStirRate; p != nil {
		rows = append(rows, []interface{}{"bottom_stir_rate", p.Value, p.Unit})
	}
	for _, r := range exp.Reactors {
		rows = append(rows, []interface{}{fmt.Sprintf("reactor%d", r.ReactorNumber), r.String()})
	}
	for i, row := range rows {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeProgramSheet(f *excelize.File, program *domain.TemperatureProgram) error {
	if err := setRow(f, SheetProgram, 1, []interface{}{"phase", "step", "temperature", "unit", "rate_or_duration", "unit"}); err != nil {
		return err
	}
	if program == nil {
		return nil
	}
	phases := []struct {
		name  string
		steps []domain.TemperatureStep
	}{
		{"solvent_tune", program.SolventTune},
		{"sample_load", program.SampleLoad},
		{"experiment", program.Experiment},
	}
	row := 2
	for _, phase := range phases {
		for _, step := range phase.steps {
			var values []interface{}
			switch s := step.(type) {
			case domain.TemperatureChange:
				values = []interface{}{phase.name, string(s.Setting), s.To.Value, s.To.Unit, s.Rate.Value, s.Rate.Unit}
			case domain.TemperatureHold:
				values = []interface{}{phase.name, "hold", s.At.Value, s.At.Unit, s.For.Value, s.For.Unit}
			default:
				continue
			}
			if err := setRow(f, SheetProgram, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeProcessedSheet(f *excelize.File, fileName string, processed []domain.ProcessedReactor) error {
	header := make([]interface{}, len(ProcessedHeaders))
	for i, h := range ProcessedHeaders {
		header[i] = h
	}
	if err := setRow(f, SheetProcessed, 1, header); err != nil {
		return err
	}
	row := 2
	for _, pr := range processed {
		r := pr.UnprocessedReactor
		for _, b := range pr.Temperatures {
			values := []interface{}{
				fileName, r.ReactorNumber, r.Polymer, r.Solvent, r.Conc.Value, r.Conc.Unit,
				b.AverageTemperature, b.TemperatureRange, b.AverageTransmission,
				b.MedianTransmission, b.TransmissionStd, b.SampleCount,
			}
			if err := setRow(f, SheetProcessed, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// writeSeriesSheet uses the stream writer, series run to tens of thousands of rows
func writeSeriesSheet(f *excelize.File, exp *domain.Experiment) error {
	sw, err := f.NewStreamWriter(SheetSeries)
	if err != nil {
		return err
	}
	headers := SeriesHeaders(exp)
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	cols := seriesColumns(exp)
	n := seriesLength(cols)
	for i := 0; i < n; i++ {
		values := make([]interface{}, len(cols))
		for c, col := range cols {
			if i < col.Len() {
				values[c] = col.Values[i]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	return sw.Flush()
}
