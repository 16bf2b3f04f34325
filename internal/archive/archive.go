// Package archive keeps the raw instrument exports next to the parsed data.
// Objects are create-only: archiving the same key twice reports ErrExists and
// leaves the first copy untouched.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

// Driver identifies an archive backend
type Driver string

const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// ErrExists is returned by Put when the key is already archived
var ErrExists = errors.New("archive: object already exists")

// Info describes an archived object
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the minimal object store the archive needs
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string, metadata map[string]string) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Config selects and configures a backend
type Config struct {
	Driver          Driver
	Dir             string
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Open returns the configured store, or nil for DriverNone
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Dir)
	case DriverS3:
		return NewS3(ctx, cfg)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown archive driver %q", cfg.Driver), nil)
	}
}

// KeyFor places a run under its start date, e.g. "2022/02/24/run.csv"
func KeyFor(exp *domain.Experiment) string {
	name := filepath.Base(exp.FileName)
	if exp.StartOfExperiment.IsZero() {
		return path.Join("undated", name)
	}
	return path.Join(exp.StartOfExperiment.UTC().Format("2006/01/02"), name)
}

// Metadata is attached to every archived run
func Metadata(exp *domain.Experiment) map[string]string {
	md := map[string]string{
		"version":           exp.Version,
		"experiment-number": exp.ExperimentNumber,
		"reactors":          fmt.Sprint(len(exp.Reactors)),
	}
	if exp.TemperatureProgram != nil {
		if hash, err := exp.TemperatureProgram.Hash(); err == nil {
			md["program-hash"] = hash
		}
	}
	return md
}

// ArchiveFile uploads the export at filePath under KeyFor(exp). An object
// already present under that key yields ErrExists.
func ArchiveFile(ctx context.Context, store Store, filePath string, exp *domain.Experiment) (Info, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	return store.Put(ctx, KeyFor(exp), f, "text/csv", Metadata(exp))
}

// sanitizeKey rejects keys that could escape the archive root
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", apperrors.NewAppValidationError("empty archive key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("invalid archive key %q", key))
	}
	return path.Clean(filepath.ToSlash(key)), nil
}
