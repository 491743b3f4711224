package models

import (
	"time"

	"github.com/hyperjump/marcador/internal/geometry"
)

// NoMatchesMessage is shown when a search finds nothing.
const NoMatchesMessage = "No occurrences found."

// PageInfo describes one page: its size in document units and rendered at the
// session scale.
type PageInfo struct {
	Page        int     `json:"page"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"`
}

// DocumentResponse summarizes an open document.
type DocumentResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	PageCount int        `json:"page_count"`
	Scale     float64    `json:"scale"`
	Pages     []PageInfo `json:"pages"`
	Term      string     `json:"term,omitempty"`
	Total     int        `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
}

// PageResult holds the highlights of one page in display space.
type PageResult struct {
	Page       int             `json:"page"`
	Highlights []geometry.Rect `json:"highlights"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	DocumentID string       `json:"document_id"`
	Term       string       `json:"term"`
	Scale      float64      `json:"scale"`
	Total      int          `json:"total"`
	NoMatches  bool         `json:"no_matches"`
	Message    string       `json:"message,omitempty"`
	Pages      []PageResult `json:"pages"`
	QueryTime  int64        `json:"query_time_ms"`
}
