package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager moves input files once they have been handled
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager resolves relative paths against baseDir
func NewManager(baseDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{baseDir: baseDir, logger: logger.With(slog.String("component", "files"))}
}

func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) || m.baseDir == "" {
		return path
	}
	return filepath.Join(m.baseDir, path)
}

// FileExists reports whether path exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(m.resolvePath(path))
	return err == nil
}

// EnsureDirectory creates path and its parents
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.resolvePath(path)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
	}
	return nil
}

// CopyFile copies src to dst, creating dst's directory
func (m *Manager) CopyFile(src, dst string) error {
	srcPath := m.resolvePath(src)
	dstPath := m.resolvePath(dst)

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	srcFile, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	return dstFile.Sync()
}

// MoveInto moves src into dir keeping its base name and returns the new path.
// An existing file of the same name is not overwritten.
func (m *Manager) MoveInto(src, dir string) (string, error) {
	srcPath := m.resolvePath(src)
	dstPath := filepath.Join(m.resolvePath(dir), filepath.Base(srcPath))
	if _, err := os.Stat(dstPath); err == nil {
		return "", fmt.Errorf("destination %s already exists: %w", dstPath, os.ErrExist)
	}

	m.logger.Debug("moving file",
		slog.String("src_path", srcPath),
		slog.String("dst_path", dstPath))

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	// rename is atomic on the same filesystem
	if err := os.Rename(srcPath, dstPath); err == nil {
		return dstPath, nil
	}
	if err := m.CopyFile(srcPath, dstPath); err != nil {
		return "", err
	}
	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("failed to remove %s after copy: %w", srcPath, err)
	}
	return dstPath, nil
}
