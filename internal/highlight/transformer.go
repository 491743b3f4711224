package highlight

import (
	"errors"
	"fmt"

	"github.com/hyperjump/marcador/internal/geometry"
)

var (
	// ErrPageMismatch is returned when a hit is transformed with the viewport of
	// another page.
	ErrPageMismatch = errors.New("hit and viewport belong to different pages")
	// ErrInvalidScale is returned for a scale that is not strictly positive.
	ErrInvalidScale = errors.New("scale must be greater than zero")
	// ErrWrongSpace is returned when a rectangle is in the wrong coordinate space.
	ErrWrongSpace = errors.New("rectangle is in the wrong coordinate space")
	// ErrUnknownPage is returned when export has highlights for a page whose size
	// is unknown.
	ErrUnknownPage = errors.New("no page size for highlighted page")
)

func checkScale(scale float64) error {
	// !(scale > 0) also rejects NaN.
	if !(scale > 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidScale, scale)
	}
	return nil
}

// ToDisplayRect maps hit into the display space of vp. The anchor is the text
// baseline, so the rectangle extends one scaled glyph height above it; this
// approximates the glyph box rather than measuring it.
func ToDisplayRect(hit TextHit, vp Viewport) (geometry.Rect, error) {
	if hit.Page != vp.Page {
		return geometry.Rect{}, fmt.Errorf("%w: hit on page %d, viewport for page %d", ErrPageMismatch, hit.Page, vp.Page)
	}
	if err := checkScale(vp.Scale); err != nil {
		return geometry.Rect{}, err
	}
	s := vp.Scale
	p := vp.Transform().Apply(hit.Anchor)
	r := geometry.Rect{
		X:      p.X,
		Y:      p.Y - hit.Height*s,
		Width:  hit.Width * s,
		Height: hit.Height * s,
		Space:  geometry.Display,
	}
	return r.Canon(), nil
}

// ToDocumentRect maps a display-space rectangle back into document space for a
// page pageHeight units high rendered at scale. The result is rounded to
// DocumentPrecision digits.
func ToDocumentRect(display geometry.Rect, scale, pageHeight float64) (geometry.Rect, error) {
	if display.Space != geometry.Display {
		return geometry.Rect{}, fmt.Errorf("%w: want display, got %s", ErrWrongSpace, display.Space)
	}
	if err := checkScale(scale); err != nil {
		return geometry.Rect{}, err
	}
	display = display.Canon()
	inv, err := Viewport{Scale: scale, Height: pageHeight}.Transform().Inverse()
	if err != nil {
		return geometry.Rect{}, err
	}
	// the display bottom-left corner becomes the document origin
	p := inv.Apply(geometry.Point{X: display.X, Y: display.Y + display.Height})
	doc := geometry.Rect{
		X:      p.X,
		Y:      p.Y,
		Width:  display.Width / scale,
		Height: display.Height / scale,
		Space:  geometry.Document,
	}
	return doc.Round(DocumentPrecision), nil
}

// ExportAnnotations re-projects every rectangle of ph into document space using
// the height of its page from pageSizes. Pages are visited in ascending order
// and rectangles keep their search order. scale must be the scale the
// highlights were produced at.
func ExportAnnotations(ph PageHighlights, pageSizes map[int]geometry.Size, scale float64) ([]Annotation, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, ph.Total())
	for _, page := range ph.Pages() {
		rects := ph[page]
		if len(rects) == 0 {
			continue
		}
		size, ok := pageSizes[page]
		if !ok {
			return nil, fmt.Errorf("%w: page %d", ErrUnknownPage, page)
		}
		for _, r := range rects {
			doc, err := ToDocumentRect(r, scale, size.Height)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", page, err)
			}
			out = append(out, Annotation{Page: page, Rect: doc})
		}
	}
	return out, nil
}
