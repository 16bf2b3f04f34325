package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "csstcli/internal/errors"
)

const metaSuffix = ".meta"

// Filesystem stores objects as files under a root directory with a JSON
// sidecar holding content type and metadata
type Filesystem struct {
	root string
}

var _ Store = (*Filesystem)(nil)

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewFilesystem roots an archive at dir, creating it if needed
func NewFilesystem(dir string) (*Filesystem, error) {
	if dir == "" {
		dir = "archive"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorageError("create archive directory", err)
	}
	return &Filesystem{root: dir}, nil
}

// Driver implements Store
func (s *Filesystem) Driver() Driver { return DriverFilesystem }

func (s *Filesystem) pathFor(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put streams r into a temp file, then renames it into place
func (s *Filesystem) Put(ctx context.Context, key string, r io.Reader, contentType string, metadata map[string]string) (Info, error) {
	dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("%s: %w", key, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, apperrors.NewStorageError("create archive directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, apperrors.NewStorageError("create temp file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Info{}, apperrors.NewStorageError("write archive object", err).WithContext("key", key)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, apperrors.NewStorageError("move archive object into place", err).WithContext("key", key)
	}

	mf := metaFile{
		ContentType: contentType,
		Metadata:    cloneMetadata(metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	b, err := json.Marshal(mf)
	if err != nil {
		return Info{}, apperrors.NewStorageError("encode archive metadata", err)
	}
	if err := os.WriteFile(dataPath+metaSuffix, b, 0o644); err != nil {
		return Info{}, apperrors.NewStorageError("write archive metadata", err).WithContext("key", key)
	}
	return mf.info(key), nil
}

// Get opens an archived object
func (s *Filesystem) Get(_ context.Context, key string) (io.ReadCloser, error) {
	dataPath, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("archive object %q", key))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("open archive object", err)
	}
	return f, nil
}

// List returns objects whose key starts with prefix, ordered by key
func (s *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		var mf metaFile
		if err := json.Unmarshal(b, &mf); err != nil {
			return fmt.Errorf("decode %s: %w", p, err)
		}
		infos = append(infos, mf.info(key))
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageError("list archive", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (m metaFile) info(key string) Info {
	return Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     cloneMetadata(m.Metadata),
		LastModified: m.CreatedAt,
	}
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
