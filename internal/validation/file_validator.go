package validation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "csstcli/internal/errors"
)

// FileValidator checks the input and output locations of a run
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "validation")),
	}
}

func invalidPath(key, path, format string, args ...any) error {
	return apperrors.NewAppValidationError(fmt.Sprintf(format, args...)).WithContext(key, path)
}

// stat reports a missing path as a validation error
func stat(key, path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, invalidPath(key, path, "%s %s does not exist", key, path)
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return info, nil
}

// ValidateInputDirectory checks that dir is an existing directory and
// returns how many entries match pattern. No match is not an error.
func (v *FileValidator) ValidateInputDirectory(dir string, pattern string) (int, error) {
	info, err := stat("directory", dir)
	if err == nil && !info.IsDir() {
		err = invalidPath("directory", dir, "%s is not a directory", dir)
	}
	if err != nil {
		v.logger.Error("invalid input directory", slog.String("directory", dir), slog.String("error", err.Error()))
		return 0, err
	}
	if pattern == "" {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, invalidPath("pattern", pattern, "invalid pattern %q: %v", pattern, err)
	}
	level := slog.LevelInfo
	if len(matches) == 0 {
		level = slog.LevelWarn
	}
	v.logger.Log(context.Background(), level, "input directory checked",
		slog.String("directory", dir),
		slog.String("pattern", pattern),
		slog.Int("matches", len(matches)))
	return len(matches), nil
}

// ValidateOutputDirectory creates dir when missing and probes that it is
// writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".csst-probe-*")
	if err != nil {
		v.logger.Error("output directory not writable", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// regularFile checks that path is an existing, readable regular file
func (v *FileValidator) regularFile(path string) (os.FileInfo, error) {
	info, err := stat("file", path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, invalidPath("file", path, "%s is a directory, not a file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	f.Close()
	return info, nil
}

// ValidateCSVFile accepts a readable, non-empty .csv file that is not an
// Office lock file
func (v *FileValidator) ValidateCSVFile(path string) error {
	info, err := v.regularFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	switch {
	case !strings.EqualFold(filepath.Ext(name), ".csv"):
		return invalidPath("file", path, "%s is not a CSV file", path)
	case strings.HasPrefix(name, "~$"):
		v.logger.Warn("skipping lock file", slog.String("file", path))
		return invalidPath("file", path, "%s is a lock file", path)
	case info.Size() == 0:
		return invalidPath("file", path, "%s is empty", path)
	}
	v.logger.Debug("export file accepted", slog.String("file", path), slog.Int64("size", info.Size()))
	return nil
}
