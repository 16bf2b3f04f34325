package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FileInfo describes one discovered export
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds instrument export files below a base path
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// skipName reports files that are never instrument exports: hidden files,
// editor lock files and the outputs this tool writes next to its inputs
func skipName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "~$") ||
		strings.HasSuffix(lower, "_processed.csv") ||
		strings.HasSuffix(lower, "_series.csv")
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func newFileInfo(path string, info fs.FileInfo) FileInfo {
	return FileInfo{Path: path, Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}
}

func byPath(a, b FileInfo) int {
	return strings.Compare(a.Path, b.Path)
}

// FindCSVFiles lists the CSV exports directly inside dir, sorted by path
func (d *Discovery) FindCSVFiles(dir string) ([]FileInfo, error) {
	root := d.resolve(dir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list exports in %s: %w", root, err)
	}

	var found []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isCSV(entry.Name()) || skipName(entry.Name()) {
			continue
		}
		// vanished since ReadDir
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, newFileInfo(filepath.Join(root, entry.Name()), info))
	}
	slices.SortFunc(found, byPath)
	return found, nil
}

// FindCSVFilesRecursive also descends into subdirectories of dir, except
// hidden ones
func (d *Discovery) FindCSVFilesRecursive(dir string) ([]FileInfo, error) {
	root := d.resolve(dir)
	var found []FileInfo
	walk := func(path string, entry fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case entry.IsDir():
			if path != root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		case !isCSV(entry.Name()) || skipName(entry.Name()):
			return nil
		}
		if info, err := entry.Info(); err == nil {
			found = append(found, newFileInfo(path, info))
		}
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, fmt.Errorf("walk exports in %s: %w", root, err)
	}
	slices.SortFunc(found, byPath)
	return found, nil
}

// FindFilesByPattern lists the regular files in dir whose base name matches
// a filepath.Match pattern
func (d *Discovery) FindFilesByPattern(dir string, pattern string) ([]FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(d.resolve(dir), pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	found := make([]FileInfo, 0, len(matches))
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
			found = append(found, newFileInfo(match, info))
		}
	}
	slices.SortFunc(found, byPath)
	return found, nil
}

// GetLatestFile picks the most recently modified file. Ties keep the
// earlier entry.
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	var latest FileInfo
	for i, f := range files {
		if i == 0 || f.ModTime.After(latest.ModTime) {
			latest = f
		}
	}
	return latest, len(files) > 0
}

// FilterModifiedSince keeps the files modified at or after since. A zero
// since keeps everything.
func FilterModifiedSince(files []FileInfo, since time.Time) []FileInfo {
	if since.IsZero() {
		return files
	}
	return slices.DeleteFunc(slices.Clone(files), func(f FileInfo) bool {
		return f.ModTime.Before(since)
	})
}
