// Package session holds open documents, their current search results and the
// export of highlighted copies.
package session

import (
	"context"
	"errors"
	"io"

	"github.com/hyperjump/marcador/internal/annotate"
	"github.com/hyperjump/marcador/internal/extract"
	"github.com/hyperjump/marcador/internal/models"
)

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidDocument is returned when uploaded bytes cannot be loaded.
	ErrInvalidDocument = errors.New("could not read PDF")
	// ErrNothingToExport is returned by Export when there is no non-empty result.
	ErrNothingToExport = errors.New("nothing to export: search for a term with matches first")
	// ErrExport wraps every failure while producing or saving the highlighted
	// copy. Its message is safe to show to users.
	ErrExport = errors.New("failed to save PDF")
)

// Loader turns PDF bytes into a loaded document.
type Loader interface {
	Load(content []byte) (*extract.Document, error)
}

// AnnotationWriter writes marks into a copy of src.
type AnnotationWriter interface {
	Write(src []byte, marks []annotate.Mark, dst io.Writer) error
}

// Sink persists finished files and returns where they were written.
type Sink interface {
	Save(name string, data []byte) (string, error)
}

// Store persists documents and search history.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, id string) error
	RecordSearch(ctx context.Context, rec *models.SearchRecord) error
	ListSearches(ctx context.Context, docID string, limit int) ([]*models.SearchRecord, error)
}

// NoMatchesFunc is called once for every search that finds nothing.
type NoMatchesFunc func(sessionID, term string)
