// Package cli formats search results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/hyperjump/marcador/internal/models"
	"github.com/hyperjump/marcador/internal/session"
	"github.com/hyperjump/marcador/pkg/utils"
)

// OutputFormat is the format for search result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one highlight per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named s.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// Match is one highlight in both coordinate spaces.
type Match struct {
	Display  geometry.Rect `json:"display"`
	Document geometry.Rect `json:"document"`
}

// PageReport lists the matches on one page.
type PageReport struct {
	Page    int     `json:"page"`
	Matches []Match `json:"matches"`
}

// Report is the printable outcome of a search over one file.
type Report struct {
	File      string       `json:"file"`
	Term      string       `json:"term"`
	Scale     float64      `json:"scale"`
	Total     int          `json:"total"`
	NoMatches bool         `json:"no_matches"`
	Message   string       `json:"message,omitempty"`
	Pages     []PageReport `json:"pages"`
	QueryTime int64        `json:"query_time_ms"`
}

// NewReport converts res into a Report, projecting every highlight back to
// document space with the result's scale. Pages lists the page sizes of the
// searched document.
func NewReport(file string, res *session.Result, pages []models.PageInfo) (*Report, error) {
	heights := make(map[int]float64, len(pages))
	for _, p := range pages {
		heights[p.Page] = p.Height
	}
	r := &Report{
		File:  file,
		Term:  res.Term,
		Scale: res.Scale,
		Total: res.Total(),
		Pages: []PageReport{},
	}
	if r.Total == 0 && len(res.Highlights) > 0 {
		r.NoMatches = true
		r.Message = models.NoMatchesMessage
	}
	for _, page := range res.Highlights.Pages() {
		rects := res.Highlights[page]
		if len(rects) == 0 {
			continue
		}
		h, ok := heights[page]
		if !ok {
			return nil, fmt.Errorf("%w: %d", highlight.ErrUnknownPage, page)
		}
		pr := PageReport{Page: page, Matches: make([]Match, 0, len(rects))}
		for _, d := range rects {
			doc, err := highlight.ToDocumentRect(d, res.Scale, h)
			if err != nil {
				return nil, err
			}
			pr.Matches = append(pr.Matches, Match{Display: d, Document: doc})
		}
		r.Pages = append(r.Pages, pr)
	}
	return r, nil
}

// WriteReport writes r to w in the given format. Unknown formats print text.
func WriteReport(w io.Writer, r *Report, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case OutputCompact:
		return writeCompact(w, r)
	default:
		return writeText(w, r)
	}
}

func writeText(w io.Writer, r *Report) error {
	if r.NoMatches {
		_, err := fmt.Fprintf(w, "%s: %q\n%s\n", filepath.Base(r.File), r.Term, r.Message)
		return err
	}
	fmt.Fprintf(w, "\nFound %d occurrences of %q in %s in %dms (scale %g)\n\n",
		r.Total, r.Term, filepath.Base(r.File), r.QueryTime, r.Scale)
	for _, p := range r.Pages {
		fmt.Fprintf(w, "--- Page %d (%d) ---\n", p.Page, len(p.Matches))
		for i, m := range p.Matches {
			fmt.Fprintf(w, "  %2d. display  %s\n", i+1, formatRect(m.Display))
			fmt.Fprintf(w, "      document %s\n", formatRect(m.Document))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// writeCompact prints "file page display document" per highlight so the
// output can be piped into other tools.
func writeCompact(w io.Writer, r *Report) error {
	if r.NoMatches {
		_, err := fmt.Fprintf(w, "%s\t-\t%s\n", r.File, r.Message)
		return err
	}
	term := utils.Truncate(r.Term, 40)
	for _, p := range r.Pages {
		for _, m := range p.Matches {
			if _, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				r.File, p.Page, term, formatRect(m.Display), formatRect(m.Document)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatRect(r geometry.Rect) string {
	return fmt.Sprintf("x=%.2f y=%.2f w=%.2f h=%.2f", r.X, r.Y, r.Width, r.Height)
}
