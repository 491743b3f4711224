package extract

import (
	"fmt"

	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/hyperjump/marcador/internal/highlight"
)

// Page is one loaded page. Number is 1-based.
type Page struct {
	Number int
	Size   geometry.Size
	Runs   []highlight.TextRun
}

// Document is a loaded PDF: its pages in order.
type Document struct {
	Pages []Page
}

// NumPages returns the number of pages.
func (d *Document) NumPages() int {
	return len(d.Pages)
}

// Page returns page n (1-based).
func (d *Document) Page(n int) (Page, bool) {
	if n < 1 || n > len(d.Pages) {
		return Page{}, false
	}
	return d.Pages[n-1], true
}

// Viewport returns the viewport of page n at scale.
func (d *Document) Viewport(n int, scale float64) (highlight.Viewport, error) {
	p, ok := d.Page(n)
	if !ok {
		return highlight.Viewport{}, fmt.Errorf("page %d out of range 1..%d", n, len(d.Pages))
	}
	return highlight.NewViewport(p.Number, scale, p.Size), nil
}

// PageSizes returns the size of every page keyed by page number.
func (d *Document) PageSizes() map[int]geometry.Size {
	sizes := make(map[int]geometry.Size, len(d.Pages))
	for _, p := range d.Pages {
		sizes[p.Number] = p.Size
	}
	return sizes
}

// PageTexts returns the text runs of every page with its viewport at scale.
func (d *Document) PageTexts(scale float64) []highlight.PageText {
	out := make([]highlight.PageText, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = highlight.PageText{
			Viewport: highlight.NewViewport(p.Number, scale, p.Size),
			Runs:     p.Runs,
		}
	}
	return out
}
