// Package annotate writes highlight annotations into a copy of a PDF.
package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

func init() {
	// keep pdfcpu from creating its config directory under the user's home
	model.ConfigPath = "disable"
}

// Kind selects the annotation subtype written for a Mark.
type Kind int

const (
	// Highlight is a text markup highlight covering the rectangle.
	Highlight Kind = iota
	// Square is a filled rectangle, used for decorations.
	Square
)

func (k Kind) subtype() types.Name {
	if k == Square {
		return "Square"
	}
	return "Highlight"
}

// Color is an RGB color with components in [0, 1].
type Color struct {
	R float64 `yaml:"r" json:"r"`
	G float64 `yaml:"g" json:"g"`
	B float64 `yaml:"b" json:"b"`
}

// Yellow is the default highlight color.
var Yellow = Color{R: 1, G: 1, B: 0}

// Style is how a mark is painted.
type Style struct {
	Color   Color
	Opacity float64
}

// Mark is one annotation to write. Rect must be in document space.
type Mark struct {
	Page  int
	Rect  geometry.Rect
	Kind  Kind
	Style Style
}

// ErrInvalidMark is returned for a mark that cannot be written.
var ErrInvalidMark = errors.New("invalid mark")

// Writer adds annotations to PDF documents.
type Writer struct {
	author string
	logger *zap.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithAuthor sets the /T entry of written annotations.
func WithAuthor(author string) Option {
	return func(w *Writer) { w.author = author }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter returns a Writer.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Write reads the PDF in src, appends one annotation per mark to its page and
// writes the result to dst. Nothing is written to dst when an error occurs
// before serialization starts.
func (w *Writer) Write(src []byte, marks []Mark, dst io.Writer) error {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(src), conf)
	if err != nil {
		return fmt.Errorf("read PDF: %w", err)
	}

	byPage := make(map[int][]Mark)
	for i, m := range marks {
		if err := validate(m, ctx.PageCount); err != nil {
			return fmt.Errorf("mark %d: %w", i, err)
		}
		byPage[m.Page] = append(byPage[m.Page], m)
	}

	for page := 1; page <= ctx.PageCount; page++ {
		pm := byPage[page]
		if len(pm) == 0 {
			continue
		}
		pageDict, pageRef, _, err := ctx.PageDict(page, false)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if pageDict == nil {
			return fmt.Errorf("page %d: missing page dictionary", page)
		}

		var annots types.Array
		if obj, found := pageDict.Find("Annots"); found && obj != nil {
			existing, err := ctx.DereferenceArray(obj)
			if err != nil {
				return fmt.Errorf("page %d annotations: %w", page, err)
			}
			annots = append(annots, existing...)
		}
		for _, m := range pm {
			ref, err := ctx.IndRefForNewObject(annotationDict(m, w.author, pageRef))
			if err != nil {
				return fmt.Errorf("page %d: add annotation: %w", page, err)
			}
			annots = append(annots, *ref)
		}
		pageDict["Annots"] = annots
		w.logger.Debug("annotated page", zap.Int("page", page), zap.Int("marks", len(pm)))
	}

	if err := api.WriteContext(ctx, dst); err != nil {
		return fmt.Errorf("write PDF: %w", err)
	}
	return nil
}

func validate(m Mark, pageCount int) error {
	if m.Page < 1 || m.Page > pageCount {
		return fmt.Errorf("%w: page %d out of range 1..%d", ErrInvalidMark, m.Page, pageCount)
	}
	if m.Rect.Space != geometry.Document {
		return fmt.Errorf("%w: rectangle in %s space", ErrInvalidMark, m.Rect.Space)
	}
	if !(m.Style.Opacity >= 0 && m.Style.Opacity <= 1) {
		return fmt.Errorf("%w: opacity %v", ErrInvalidMark, m.Style.Opacity)
	}
	return nil
}

// annotationDict builds the annotation dictionary for m. page may be nil.
func annotationDict(m Mark, author string, page *types.IndirectRef) types.Dict {
	r := m.Rect.Canon()
	x1, y1, x2, y2 := r.X, r.Y, r.X+r.Width, r.Y+r.Height
	c := m.Style.Color

	d := types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": m.Kind.subtype(),
		"Rect":    types.NewNumberArray(x1, y1, x2, y2),
		"C":       types.NewNumberArray(c.R, c.G, c.B),
		"CA":      types.Float(m.Style.Opacity),
		"F":       types.Integer(4), // print
		"NM":      types.StringLiteral(uuid.NewString()),
	}
	if page != nil {
		d["P"] = *page
	}
	if a := sanitize(author); a != "" {
		d["T"] = types.StringLiteral(a)
	}
	switch m.Kind {
	case Highlight:
		d["QuadPoints"] = quadPoints(r)
	case Square:
		d["IC"] = types.NewNumberArray(c.R, c.G, c.B)
		d["BS"] = types.Dict{"W": types.Integer(0)}
	}
	return d
}

// quadPoints returns the single quadrilateral of r in the order viewers
// expect: top-left, top-right, bottom-left, bottom-right.
func quadPoints(r geometry.Rect) types.Array {
	c := r.Corners()
	return types.NewNumberArray(c[3].X, c[3].Y, c[2].X, c[2].Y, c[0].X, c[0].Y, c[1].X, c[1].Y)
}

// sanitize keeps printable ASCII and drops the characters that would need
// escaping inside a PDF string literal.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '(' || r == ')' || r == '\\' {
			return -1
		}
		return r
	}, s)
}
