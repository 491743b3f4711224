// Package geometry provides the points, rectangles and affine matrices used to
// move highlight regions between display space and document space.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/hyperjump/marcador/pkg/utils"
)

// Space identifies the coordinate system a Rect is expressed in.
type Space int

const (
	// Document space: origin bottom-left, native document units.
	Document Space = iota
	// Display space: origin top-left, pixels at the active scale.
	Display
)

// String returns "document" or "display".
func (s Space) String() string {
	switch s {
	case Document:
		return "document"
	case Display:
		return "display"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// MarshalText encodes the space by name so it reads well in JSON output.
func (s Space) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a space name written by MarshalText.
func (s *Space) UnmarshalText(b []byte) error {
	switch string(b) {
	case "document":
		*s = Document
	case "display":
		*s = Display
	default:
		return fmt.Errorf("unknown coordinate space %q", string(b))
	}
	return nil
}

// Point is an X, Y pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width and height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle. For Display rects (X, Y) is the top-left
// corner; for Document rects it is the bottom-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Space  Space   `json:"space"`
}

// Canon returns r with negative extents folded into the origin, so Width and
// Height are never negative.
func (r Rect) Canon() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Round rounds every component of r to the given number of fractional digits.
func (r Rect) Round(digits int) Rect {
	return Rect{
		X:      utils.RoundTo(r.X, digits),
		Y:      utils.RoundTo(r.Y, digits),
		Width:  utils.RoundTo(r.Width, digits),
		Height: utils.RoundTo(r.Height, digits),
		Space:  r.Space,
	}
}

// Corners returns the four corners of a Document rect counter-clockwise,
// starting at the bottom-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X, r.Y},
		{r.X + r.Width, r.Y},
		{r.X + r.Width, r.Y + r.Height},
		{r.X, r.Y + r.Height},
	}
}

// Matrix is a 2D affine transform [a b c d e f], mapping (x, y) to
// (a·x + c·y + e, b·x + d·y + f).
type Matrix [6]float64

// ErrSingular is returned when inverting a matrix with zero determinant.
var ErrSingular = errors.New("matrix is singular")

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// ScaleMatrix returns a scaling by (sx, sy).
func ScaleMatrix(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply returns the transform that applies m first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Apply transforms p.
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Inverse returns the inverse transform.
func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return Matrix{}, ErrSingular
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}
