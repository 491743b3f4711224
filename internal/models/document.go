// Package models defines the stored records and API payloads shared by the
// storage layer, sessions and the HTTP server.
package models

import "time"

// Document is an uploaded PDF as stored. Content holds the original bytes.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Content   []byte    `json:"-" db:"content"`
	PageCount int       `json:"page_count" db:"page_count"`
	Scale     float64   `json:"scale" db:"scale"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SearchRecord is one search run against a document.
type SearchRecord struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Term       string    `json:"term" db:"term"`
	Scale      float64   `json:"scale" db:"scale"`
	Total      int       `json:"total" db:"total"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
