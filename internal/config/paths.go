package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePaths makes every relative path absolute against base. An empty
// base uses the working directory.
func (c *Config) ResolvePaths(base string) error {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	resolve := func(p *string) {
		if *p == "" || filepath.IsAbs(*p) {
			return
		}
		*p = filepath.Join(base, *p)
	}
	resolve(&c.Paths.InputDir)
	resolve(&c.Paths.OutputDir)
	resolve(&c.Paths.LogsDir)
	resolve(&c.Paths.ProcessedDir)
	resolve(&c.Logging.FilePath)
	resolve(&c.Archive.Dir)
	resolve(&c.Telemetry.MetricsFile)
	resolve(&c.Storage.NamesFile)
	if c.Storage.Driver == "sqlite" && c.Storage.DSN != ":memory:" {
		resolve(&c.Storage.DSN)
	}
	return nil
}

// SummaryPath is the summary file, relative names living in the output
// directory
func (c *Config) SummaryPath() string {
	if filepath.IsAbs(c.Paths.SummaryFile) {
		return c.Paths.SummaryFile
	}
	return filepath.Join(c.Paths.OutputDir, c.Paths.SummaryFile)
}

// EnsureDirectories creates the output, logs and processed directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.LogsDir, c.Paths.ProcessedDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
