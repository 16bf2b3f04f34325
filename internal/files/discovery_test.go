package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func names(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestNewDiscovery(t *testing.T) {
	discovery := NewDiscovery("/test/base")
	assert.Equal(t, "/test/base", discovery.basePath)
	assert.Equal(t, "/abs", discovery.resolve("/abs"))
	assert.Equal(t, filepath.Join("/test/base", "rel"), discovery.resolve("rel"))
	assert.Equal(t, "rel", NewDiscovery("").resolve("rel"))
}

func TestFindCSVFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected []string
	}{
		{
			name:     "only exports",
			files:    []string{"b.csv", "a.CSV"},
			expected: []string{"a.CSV", "b.csv"},
		},
		{
			name:     "mixed file types",
			files:    []string{"run.csv", "report.xlsx", "notes.txt"},
			expected: []string{"run.csv"},
		},
		{
			name:     "skips outputs hidden and lock files",
			files:    []string{"run.csv", "run_processed.csv", "run_series.csv", ".hidden.csv", "~$run.csv"},
			expected: []string{"run.csv"},
		},
		{
			name:     "empty directory",
			files:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			for _, f := range tt.files {
				touch(t, filepath.Join(base, "exports", f))
			}
			require.NoError(t, os.MkdirAll(filepath.Join(base, "exports", "sub.csv"), 0755))

			found, err := NewDiscovery(base).FindCSVFiles("exports")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, append([]string{}, names(found)...))
			for _, f := range found {
				assert.Equal(t, filepath.Join(base, "exports", f.Name), f.Path)
				assert.Equal(t, int64(1), f.Size)
			}
		})
	}
}

func TestFindCSVFiles_MissingDirectory(t *testing.T) {
	_, err := NewDiscovery(t.TempDir()).FindCSVFiles("missing")
	assert.Error(t, err)
}

func TestFindCSVFilesRecursive(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "2022", "feb", "run2.csv"))
	touch(t, filepath.Join(base, "2022", "run1.csv"))
	touch(t, filepath.Join(base, "top.csv"))
	touch(t, filepath.Join(base, ".git", "ignored.csv"))
	touch(t, filepath.Join(base, "out", "top_processed.csv"))

	found, err := NewDiscovery("").FindCSVFilesRecursive(base)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, filepath.Join(base, "2022", "feb", "run2.csv"), found[0].Path)
	assert.Equal(t, filepath.Join(base, "2022", "run1.csv"), found[1].Path)
	assert.Equal(t, filepath.Join(base, "top.csv"), found[2].Path)
}

func TestFindFilesByPattern(t *testing.T) {
	base := t.TempDir()
	for _, f := range []string{"RK-0042.csv", "RK-0043.csv", "JB-0001.csv"} {
		touch(t, filepath.Join(base, f))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(base, "RK-dir"), 0755))

	found, err := NewDiscovery(base).FindFilesByPattern(".", "RK-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"RK-0042.csv", "RK-0043.csv"}, names(found))

	_, err = NewDiscovery(base).FindFilesByPattern(".", "[")
	assert.Error(t, err)
}

func TestGetLatestFileAndFilter(t *testing.T) {
	now := time.Now()
	files := []FileInfo{
		{Name: "old.csv", ModTime: now.Add(-2 * time.Hour)},
		{Name: "new.csv", ModTime: now},
		{Name: "mid.csv", ModTime: now.Add(-time.Hour)},
	}

	latest, ok := GetLatestFile(files)
	require.True(t, ok)
	assert.Equal(t, "new.csv", latest.Name)

	_, ok = GetLatestFile(nil)
	assert.False(t, ok)

	assert.Equal(t, []string{"new.csv", "mid.csv"}, names(FilterModifiedSince(files, now.Add(-time.Hour))))
	assert.Len(t, FilterModifiedSince(files, time.Time{}), 3)
}
