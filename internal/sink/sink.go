// Package sink persists exported documents.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidName is returned for a file name that is empty or contains a path.
var ErrInvalidName = errors.New("invalid file name")

// FileSink writes files into a directory. Writes are atomic: a file appears
// under its final name complete or not at all.
type FileSink struct {
	dir    string
	perm   os.FileMode
	logger *zap.Logger
}

// Option configures a FileSink.
type Option func(*FileSink)

// WithPerm sets the mode of written files. Zero keeps the mode of a file being
// replaced, or 0644 for new files.
func WithPerm(perm os.FileMode) Option {
	return func(s *FileSink) { s.perm = perm }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *FileSink) { s.logger = l }
}

// NewFileSink returns a sink writing into dir.
func NewFileSink(dir string, opts ...Option) *FileSink {
	s := &FileSink{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Dir returns the directory files are written to.
func (s *FileSink) Dir() string {
	return s.dir
}

// Save writes data to name inside the sink directory, creating the directory
// if needed, and returns the full path written.
func (s *FileSink) Save(name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := writeFile(path, data, s.perm); err != nil {
		return "", err
	}
	s.logger.Debug("saved file", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// writeFile writes data to a temporary file next to path and renames it into
// place.
func writeFile(path string, data []byte, perm os.FileMode) error {
	if perm == 0 {
		if st, err := os.Stat(path); err == nil {
			perm = st.Mode()
		} else {
			perm = 0644
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	_ = tmp.Chmod(perm)
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}

// OutputSuffix ends the name of every highlighted copy, in lower case.
const OutputSuffix = outputTag + ".pdf"

const outputTag = ".marcado"

// OutputName returns the name of the highlighted copy of src, e.g.
// "report.pdf" becomes "report.marcado.pdf".
func OutputName(src string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + outputTag + ext
}
