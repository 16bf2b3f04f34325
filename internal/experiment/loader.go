package experiment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

// Version1014 is the only export format with a parser
const Version1014 = "1014"

// VersionParser fills exp from the lines following line 1
type VersionParser func(ctx context.Context, exp *domain.Experiment, src *Source, logger *slog.Logger) error

// Loader reads instrument exports and dispatches on their version token
type Loader struct {
	logger *slog.Logger

	mu       sync.RWMutex
	versions map[string]VersionParser
}

// NewLoader creates a loader with the built-in version parsers registered
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		logger:   logger.With(slog.String("component", "experiment_loader")),
		versions: make(map[string]VersionParser),
	}
	l.RegisterVersion(Version1014, parseVersion1014)
	return l
}

// RegisterVersion adds or replaces the parser for a version token
func (l *Loader) RegisterVersion(version string, parser VersionParser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.versions[version] = parser
}

// Versions returns the registered version tokens, sorted
func (l *Loader) Versions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.versions))
	for v := range l.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (l *Loader) parser(version string) (VersionParser, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.versions[version]
	return p, ok
}

// LoadFromFile opens path and loads it. The experiment's FileName is the
// base name of path.
func (l *Loader) LoadFromFile(ctx context.Context, path string) (*domain.Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open experiment file: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, f, filepath.Base(path))
}

// Load reads an export from r.
//
// For an unknown version the returned experiment carries only FileName and
// Version and the error matches errors.ErrFormat. Any other failure returns a
// nil experiment.
func (l *Loader) Load(ctx context.Context, r io.Reader, fileName string) (*domain.Experiment, error) {
	src := NewSource(r)
	exp := domain.NewExperiment(fileName)

	first, ok, err := src.Next()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read first line", err).WithLine(1)
	}
	if !ok {
		return exp, apperrors.NewFormatError("file is empty").WithContext("file", fileName)
	}

	version, verr := versionToken(first)
	if verr != nil {
		return exp, verr.WithContext("file", fileName)
	}
	exp.Version = version

	parse, ok := l.parser(version)
	if !ok {
		l.logger.WarnContext(ctx, "unsupported export version",
			slog.String("file", fileName),
			slog.String("version", version))
		return exp, apperrors.NewFormatError(fmt.Sprintf("unsupported file version %q", version)).
			WithContext("file", fileName)
	}

	if err := parse(ctx, exp, src, l.logger.With(slog.String("file", fileName))); err != nil {
		return nil, fmt.Errorf("load %s: %w", fileName, err)
	}

	l.logger.DebugContext(ctx, "experiment loaded",
		slog.String("file", fileName),
		slog.Int("reactors", len(exp.Reactors)),
		slog.Int("samples", exp.TimeSinceExperimentStart.Len()))
	return exp, nil
}

// LoadFromFile loads path with a default loader
func LoadFromFile(path string) (*domain.Experiment, error) {
	return NewLoader(nil).LoadFromFile(context.Background(), path)
}

// versionToken extracts "<version>" from "<anything>,<anything>:<version>"
func versionToken(first string) (string, *apperrors.AppError) {
	first = strings.TrimPrefix(first, "\ufeff")
	fields := strings.Split(first, ",")
	if len(fields) < 2 {
		return "", apperrors.NewFormatError("first line has no version field").WithLine(1)
	}
	parts := strings.Split(fields[1], ":")
	if len(parts) < 2 {
		return "", apperrors.NewFormatError("first line has no version token").WithLine(1)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Source hands out lines one at a time and keeps the rest of the stream
// available for the tabular data block.
type Source struct {
	r    *bufio.Reader
	line int
}

// NewSource wraps r
func NewSource(r io.Reader) *Source {
	return &Source{r: bufio.NewReader(r)}
}

// Next returns the next line without its terminator. ok is false at end of
// input.
func (s *Source) Next() (line string, ok bool, err error) {
	text, err := s.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	if err == io.EOF && text == "" {
		return "", false, nil
	}
	s.line++
	return strings.TrimRight(text, "\r\n"), true, nil
}

// Line returns the 1-based number of the last line returned by Next
func (s *Source) Line() int { return s.line }

// Remaining returns a reader over everything not yet consumed by Next
func (s *Source) Remaining() io.Reader { return s.r }
