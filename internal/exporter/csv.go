package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// utf8BOM starts every new file so spreadsheet tools read °C correctly
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a CSV header plus its rows
type Table struct {
	Header []string
	Rows   [][]string
}

// TableWriter writes CSV tables, placing relative paths under a base directory
type TableWriter struct {
	baseDir string
	logger  *slog.Logger
}

func NewTableWriter(baseDir string, logger *slog.Logger) *TableWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableWriter{baseDir: baseDir, logger: logger}
}

// Path returns where name is written
func (w *TableWriter) Path(name string) string {
	if w.baseDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.baseDir, name)
}

// Write replaces the file at name with t
func (w *TableWriter) Write(name string, t Table) error {
	return w.write(name, t, false)
}

// Append adds the rows of t to name. The header goes out only when the file
// is new or empty.
func (w *TableWriter) Append(name string, t Table) error {
	return w.write(name, t, true)
}

func (w *TableWriter) write(name string, t Table, appendRows bool) (err error) {
	target := w.Path(name)
	w.logger.Debug("writing table",
		slog.String("file_path", target),
		slog.Int("rows", len(t.Rows)),
		slog.Bool("append", appendRows))

	f, fresh, err := openTable(target, appendRows)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", target, cerr)
		}
	}()

	cw := csv.NewWriter(f)
	if fresh {
		if err := writeHeader(f, cw, t.Header); err != nil {
			return fmt.Errorf("start %s: %w", target, err)
		}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows to %s: %w", target, err)
	}
	return nil
}

// openTable opens path for writing and reports whether it starts empty
func openTable(path string, appendRows bool) (*os.File, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	mode := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendRows {
		mode = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, mode, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, info.Size() == 0, nil
}

func writeHeader(f *os.File, cw *csv.Writer, header []string) error {
	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}
	if len(header) == 0 {
		return nil
	}
	return cw.Write(header)
}

// RowStream writes a table one row at a time
type RowStream struct {
	path string
	file *os.File
	cw   *csv.Writer
}

// OpenStream truncates name and writes header to it
func (w *TableWriter) OpenStream(name string, header []string) (*RowStream, error) {
	target := w.Path(name)
	w.logger.Debug("opening row stream", slog.String("file_path", target), slog.Int("columns", len(header)))

	f, _, err := openTable(target, false)
	if err != nil {
		return nil, err
	}
	s := &RowStream{path: target, file: f, cw: csv.NewWriter(f)}
	if err := writeHeader(f, s.cw, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("start %s: %w", target, err)
	}
	return s, nil
}

func (s *RowStream) Write(row []string) error {
	return s.cw.Write(row)
}

// Close flushes buffered rows and closes the file
func (s *RowStream) Close() error {
	s.cw.Flush()
	ferr := s.cw.Error()
	cerr := s.file.Close()
	if ferr != nil {
		return fmt.Errorf("flush %s: %w", s.path, ferr)
	}
	if cerr != nil {
		return fmt.Errorf("close %s: %w", s.path, cerr)
	}
	return nil
}
