// Package highlight converts text-match hits into highlight rectangles in
// display space and re-projects them into document space for export.
//
// Everything here is a pure function of its inputs. Callers own the loaded
// document, the active scale and the current results.
package highlight

import (
	"sort"

	"github.com/hyperjump/marcador/internal/geometry"
)

// DocumentPrecision is the number of fractional digits kept in document-space
// rectangles.
const DocumentPrecision = 2

// Viewport describes one page rendered at a given scale.
type Viewport struct {
	Page   int     `json:"page"`
	Scale  float64 `json:"scale"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewViewport returns the viewport for page rendered at scale, where size is
// the page size in document units.
func NewViewport(page int, scale float64, size geometry.Size) Viewport {
	return Viewport{Page: page, Scale: scale, Width: size.Width, Height: size.Height}
}

// Transform returns the document-to-display matrix: scale, then flip the y axis
// so the origin moves from the bottom-left to the top-left corner.
func (v Viewport) Transform() geometry.Matrix {
	return geometry.ScaleMatrix(v.Scale, -v.Scale).Multiply(geometry.Translate(0, v.Height*v.Scale))
}

// PixelSize returns the rendered page size in display units.
func (v Viewport) PixelSize() geometry.Size {
	return geometry.Size{Width: v.Width * v.Scale, Height: v.Height * v.Scale}
}

// TextHit is one occurrence of the search term. Anchor is the baseline origin
// of the glyph run; all values are document units before scaling.
type TextHit struct {
	Page   int            `json:"page"`
	Anchor geometry.Point `json:"anchor"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
}

// TextRun is one run of text on a page together with its geometry.
type TextRun struct {
	Text   string         `json:"text"`
	Anchor geometry.Point `json:"anchor"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
}

// Hit returns the TextHit for r on page.
func (r TextRun) Hit(page int) TextHit {
	return TextHit{Page: page, Anchor: r.Anchor, Width: r.Width, Height: r.Height}
}

// PageText is the extracted text of one page with the viewport it is shown in.
type PageText struct {
	Viewport Viewport
	Runs     []TextRun
}

// PageHighlights maps a page number to its display-space rectangles, in the
// order the runs were visited.
type PageHighlights map[int][]geometry.Rect

// Pages returns the page numbers in ascending order.
func (ph PageHighlights) Pages() []int {
	pages := make([]int, 0, len(ph))
	for p := range ph {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Total returns the number of rectangles across all pages.
func (ph PageHighlights) Total() int {
	n := 0
	for _, rects := range ph {
		n += len(rects)
	}
	return n
}

// Annotation is a document-space rectangle bound to a page, ready to be drawn
// by an annotation writer.
type Annotation struct {
	Page int           `json:"page"`
	Rect geometry.Rect `json:"rect"`
}
