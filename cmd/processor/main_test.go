package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csstcli/internal/config"
)

func referenceExport(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "experiment", "testdata", "crystal16_v1014.csv"))
	require.NoError(t, err)
	return data
}

type cliReport struct {
	TraceID   string `json:"trace_id"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Files     []struct {
		FileName   string   `json:"file_name"`
		Reactors   int      `json:"reactors"`
		Outputs    []string `json:"outputs"`
		ArchiveKey string   `json:"archive_key"`
		Error      string   `json:"error"`
	} `json:"files"`
}

func runCLI(t *testing.T, args ...string) (int, cliReport, string) {
	t.Helper()
	t.Setenv("CSST_PATHS_LOGS_DIR", t.TempDir())
	var stdout, stderr bytes.Buffer
	args = append([]string{"-log-level=error"}, args...)
	code := run(context.Background(), args, &stdout, &stderr)

	var report cliReport
	if stdout.Len() > 0 {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &report), stdout.String())
	}
	return code, report, stderr.String()
}

func TestRun_ProcessesDirectory(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")
	base := t.TempDir()
	in := filepath.Join(base, "in")
	out := filepath.Join(base, "out")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "RK-0042.csv"), referenceExport(t), 0644))

	code, report, stderr := runCLI(t,
		"-in", in,
		"-out", out,
		"-xlsx",
		"-archive", "fs",
		"-archive-dir", filepath.Join(base, "archive"),
		"-metrics-file", filepath.Join(base, "csst.prom"),
	)
	require.Equal(t, exitOK, code, stderr)
	assert.NotEmpty(t, report.TraceID)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Files, 1)
	assert.Equal(t, 3, report.Files[0].Reactors)
	assert.Len(t, report.Files[0].Outputs, 2)
	assert.Equal(t, "2022/02/24/RK-0042.csv", report.Files[0].ArchiveKey)
	assert.FileExists(t, filepath.Join(out, "summary.csv"))
	assert.FileExists(t, filepath.Join(base, "csst.prom"))
}

func TestRun_PartialFailure(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "good.csv"), referenceExport(t), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.csv"), []byte("Crystal16 Data File,Version:9999\n"), 0644))

	code, report, _ := runCLI(t, "-in", in, "-out", t.TempDir(), "-workers", "2")
	assert.Equal(t, exitPartial, code)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Files, 2)
	assert.Equal(t, "bad.csv", report.Files[0].FileName)
	assert.Contains(t, report.Files[0].Error, "9999")
	assert.Empty(t, report.Files[1].Error)
}

func TestRun_ConfigFileAndOverrides(t *testing.T) {
	base := t.TempDir()
	in := filepath.Join(base, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "RK-0042.csv"), referenceExport(t), 0644))

	cfgPath := filepath.Join(base, "config.yaml")
	yaml := "paths:\n  input_dir: " + in + "\n  output_dir: " + filepath.Join(base, "out") +
		"\nprocessing:\n  pattern: \"JB-*\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))

	code, report, _ := runCLI(t, "-config", cfgPath)
	assert.Equal(t, exitOK, code)
	assert.Empty(t, report.Files)

	code, report, _ = runCLI(t, "-config", cfgPath, "-pattern", "RK-*")
	assert.Equal(t, exitOK, code)
	assert.Len(t, report.Files, 1)
}

func TestRun_Errors(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{name: "unknown flag", args: []string{"-bogus"}, code: exitUsage},
		{name: "positional argument", args: []string{"extra"}, code: exitUsage, stderr: "unexpected arguments"},
		{name: "invalid storage", args: []string{"-storage", "mongo"}, code: exitFatal, stderr: "Storage.Driver"},
		{name: "postgres without dsn", args: []string{"-storage", "postgres"}, code: exitFatal, stderr: "Storage.DSN"},
		{name: "zero workers", args: []string{"-workers", "0"}, code: exitFatal, stderr: "Processing.Workers"},
		{name: "missing config file", args: []string{"-config", "/nonexistent/csst.yaml"}, code: exitFatal, stderr: "configuration error"},
		{
			name:   "missing input directory",
			args:   []string{"-in", "/nonexistent/csst-input", "-out", os.TempDir()},
			code:   exitFatal,
			stderr: "batch failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, tt.code, code)
			if tt.stderr != "" {
				assert.Contains(t, stderr, tt.stderr)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"-h"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-skip-tune-load")
}

func TestFlagsApply_OnlyExplicitFlags(t *testing.T) {
	f, set, err := parseFlags([]string{"-workers", "8", "-skip-tune-load", "-traces", "stdout"}, &bytes.Buffer{})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Processing.Recursive = true
	f.apply(cfg, set)

	assert.Equal(t, 8, cfg.Processing.Workers)
	assert.True(t, cfg.Processing.SkipTuneAndLoad)
	assert.Equal(t, "stdout", cfg.Telemetry.Traces)
	assert.True(t, cfg.Processing.Recursive)
	assert.Equal(t, config.DefaultBucketWidth, cfg.Processing.BucketWidth)
	assert.Equal(t, config.DefaultInputDir, cfg.Paths.InputDir)
}
