// Package exporter writes parsed runs and their processed buckets to disk.
//
// TableWriter is the low-level CSV writer. New files start with a UTF-8 BOM
// and a header; Append adds rows to an existing file. ExperimentExporter
// builds on it:
//
//	ex := exporter.NewExperimentExporter(outputDir, logger)
//	processedPath, err := ex.ExportProcessed(exp, processed)
//	seriesPath, err := ex.ExportSeries(exp)
//	err = ex.AppendSummary("summary.csv", exp, processed)
//
// WorkbookExporter writes the same content as one XLSX workbook per run with
// Summary, Program, Processed and Series sheets.
package exporter
