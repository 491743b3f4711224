package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTermLength is the longest accepted search term, in characters.
const MaxTermLength = 256

// SearchRequest is the body of a search call. A positive Scale changes the
// display scale before searching.
type SearchRequest struct {
	Term  string  `json:"term"`
	Scale float64 `json:"scale,omitempty"`
}

// Validate checks the term length and scale. A blank term is valid: it
// searches nothing.
func (q *SearchRequest) Validate() error {
	if q.Scale < 0 {
		return fmt.Errorf("scale must not be negative, got %v", q.Scale)
	}
	if n := utf8.RuneCountInString(q.Term); n > MaxTermLength {
		return fmt.Errorf("term too long: %d characters, max %d", n, MaxTermLength)
	}
	return nil
}

// Blank reports whether the term is empty or only whitespace.
func (q *SearchRequest) Blank() bool {
	return strings.TrimSpace(q.Term) == ""
}
