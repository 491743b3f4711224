// Package storage defines the persistence interface for documents and searches.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/marcador/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and search persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Search history
	RecordSearch(ctx context.Context, rec *models.SearchRecord) error
	ListSearches(ctx context.Context, docID string, limit int) ([]*models.SearchRecord, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
