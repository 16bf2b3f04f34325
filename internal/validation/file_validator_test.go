package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csstcli/internal/errors"
)

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("x"), 0644))
	file := filepath.Join(dir, "a.csv")

	tests := []struct {
		name    string
		dir     string
		pattern string
		count   int
		errIs   error
	}{
		{name: "matching files", dir: dir, pattern: "*.csv", count: 2},
		{name: "no matches is fine", dir: dir, pattern: "*.xlsx", count: 0},
		{name: "no pattern", dir: dir},
		{name: "missing directory", dir: filepath.Join(dir, "missing"), errIs: apperrors.ErrValidation},
		{name: "file instead of directory", dir: file, errIs: apperrors.ErrValidation},
	}

	v := NewFileValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := v.ValidateInputDirectory(tt.dir, tt.pattern)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.count, count)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, NewFileValidator(nil).ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileValidator_ValidateCSVFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	v := NewFileValidator(nil)
	assert.NoError(t, v.ValidateCSVFile(write("run.csv", "data")))
	assert.NoError(t, v.ValidateCSVFile(write("RUN2.CSV", "data")))

	for name, path := range map[string]string{
		"wrong extension": write("run.txt", "data"),
		"lock file":       write("~$run.csv", "data"),
		"empty":           write("empty.csv", ""),
		"missing":         filepath.Join(dir, "missing.csv"),
		"directory":       dir,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, v.ValidateCSVFile(path), apperrors.ErrValidation)
		})
	}
}
