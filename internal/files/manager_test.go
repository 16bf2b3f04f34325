package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_MoveInto(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "in", "run.csv"))
	m := NewManager(base, nil)

	dst, err := m.MoveInto("in/run.csv", "done")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "done", "run.csv"), dst)
	assert.False(t, m.FileExists("in/run.csv"))
	assert.True(t, m.FileExists("done/run.csv"))

	touch(t, filepath.Join(base, "in", "run.csv"))
	_, err = m.MoveInto("in/run.csv", "done")
	assert.ErrorIs(t, err, os.ErrExist)
	assert.True(t, m.FileExists("in/run.csv"))
}

func TestManager_CopyFileAndEnsureDirectory(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base, nil)
	require.NoError(t, m.EnsureDirectory("a/b"))
	assert.DirExists(t, filepath.Join(base, "a", "b"))

	touch(t, filepath.Join(base, "src.csv"))
	require.NoError(t, m.CopyFile("src.csv", "a/b/copy.csv"))
	data, err := os.ReadFile(filepath.Join(base, "a", "b", "copy.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	assert.Error(t, m.CopyFile("missing.csv", "x.csv"))
}
