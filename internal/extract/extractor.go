// Package extract loads PDF documents into per-page text runs and page sizes.
package extract

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ErrNoPages is returned for a document without any page.
var ErrNoPages = errors.New("document has no pages")

// Loader reads PDF bytes into a Document.
type Loader struct {
	password string
	logger   *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPassword sets the password tried on encrypted documents.
func WithPassword(pw string) LoaderOption {
	return func(l *Loader) { l.password = pw }
}

// WithLogger sets a logger for debug output (skipped pages, recovered content errors).
func WithLogger(lg *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader returns a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Load parses content and returns its pages, sizes and text runs.
func (l *Loader) Load(content []byte) (*Document, error) {
	return readPDF(content, l.password, l.logger)
}

// LoadFile reads the file at path and loads it.
func (l *Loader) LoadFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return l.Load(content)
}
