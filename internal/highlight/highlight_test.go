package highlight

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/hyperjump/marcador/pkg/utils"
)

var letter = geometry.Size{Width: 612, Height: 792}

func TestToDisplayRect_Example(t *testing.T) {
	vp := NewViewport(1, 1.5, letter)
	hit := TextHit{Page: 1, Anchor: geometry.Point{X: 100, Y: 700}, Width: 80, Height: 12}

	got, err := ToDisplayRect(hit, vp)
	if err != nil {
		t.Fatalf("ToDisplayRect: %v", err)
	}
	want := geometry.Rect{X: 150, Y: 120, Width: 120, Height: 18, Space: geometry.Display}
	if got != want {
		t.Errorf("ToDisplayRect = %+v, want %+v", got, want)
	}

	doc, err := ToDocumentRect(got, 1.5, letter.Height)
	if err != nil {
		t.Fatalf("ToDocumentRect: %v", err)
	}
	wantDoc := geometry.Rect{X: 100, Y: 700, Width: 80, Height: 12, Space: geometry.Document}
	if doc != wantDoc {
		t.Errorf("ToDocumentRect = %+v, want %+v", doc, wantDoc)
	}
}

func TestToDisplayRect_Errors(t *testing.T) {
	hit := TextHit{Page: 2, Anchor: geometry.Point{X: 1, Y: 1}, Width: 1, Height: 1}

	if _, err := ToDisplayRect(hit, NewViewport(1, 1, letter)); !errors.Is(err, ErrPageMismatch) {
		t.Errorf("page mismatch: err = %v, want ErrPageMismatch", err)
	}
	for _, scale := range []float64{0, -1, math.NaN()} {
		if _, err := ToDisplayRect(hit, NewViewport(2, scale, letter)); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("scale %v: err = %v, want ErrInvalidScale", scale, err)
		}
	}
}

func TestToDocumentRect_Errors(t *testing.T) {
	doc := geometry.Rect{X: 1, Y: 1, Width: 1, Height: 1, Space: geometry.Document}
	if _, err := ToDocumentRect(doc, 1, 792); !errors.Is(err, ErrWrongSpace) {
		t.Errorf("err = %v, want ErrWrongSpace", err)
	}
	disp := doc
	disp.Space = geometry.Display
	if _, err := ToDocumentRect(disp, 0, 792); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("err = %v, want ErrInvalidScale", err)
	}
}

func TestRoundTrip_ScaleInvariant(t *testing.T) {
	hits := []TextHit{
		{Page: 1, Anchor: geometry.Point{X: 72, Y: 720}, Width: 120.5, Height: 11},
		{Page: 1, Anchor: geometry.Point{X: 0, Y: 0}, Width: 10, Height: 10},
		{Page: 1, Anchor: geometry.Point{X: 300.25, Y: 400.75}, Width: 33.33, Height: 9.5},
	}
	scales := []float64{0.5, 1, 1.5, 2, 3.25}

	for _, hit := range hits {
		for _, scale := range scales {
			vp := NewViewport(1, scale, letter)
			disp, err := ToDisplayRect(hit, vp)
			if err != nil {
				t.Fatal(err)
			}
			if !utils.AlmostEqual(disp.Width, hit.Width*scale, 1e-9) || !utils.AlmostEqual(disp.Height, hit.Height*scale, 1e-9) {
				t.Errorf("scale %v: display size %vx%v not proportional to %vx%v", scale, disp.Width, disp.Height, hit.Width, hit.Height)
			}
			doc, err := ToDocumentRect(disp, scale, letter.Height)
			if err != nil {
				t.Fatal(err)
			}
			checks := []struct {
				name      string
				got, want float64
			}{
				{"x", doc.X, hit.Anchor.X},
				{"y", doc.Y, hit.Anchor.Y},
				{"width", doc.Width, hit.Width},
				{"height", doc.Height, hit.Height},
			}
			for _, c := range checks {
				if !utils.AlmostEqual(c.got, c.want, 0.01) {
					t.Errorf("scale %v: %s = %v, want %v", scale, c.name, c.got, c.want)
				}
			}
		}
	}
}

func pageText(page int, scale float64, texts ...string) PageText {
	pt := PageText{Viewport: NewViewport(page, scale, letter)}
	for i, s := range texts {
		pt.Runs = append(pt.Runs, TextRun{
			Text:   s,
			Anchor: geometry.Point{X: 72, Y: 720 - float64(i)*14},
			Width:  float64(len(s)) * 6,
			Height: 12,
		})
	}
	return pt
}

func TestSearch(t *testing.T) {
	pages := []PageText{
		pageText(1, 1.5, "Hello World", "nothing here", "well, HELLO again"),
		pageText(2, 1.5, "goodbye"),
		pageText(3, 1.5, "hello"),
	}

	ph, err := Search("hello", pages)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ph.Total(); got != 3 {
		t.Fatalf("Total = %d, want 3", got)
	}
	if got := ph.Pages(); len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("Pages = %v, want [1 2 3]", got)
	}
	if n := len(ph[2]); n != 0 {
		t.Errorf("page 2 has %d rects, want 0", n)
	}
	// rects keep run order: first run sits above the third
	p1 := ph[1]
	if len(p1) != 2 {
		t.Fatalf("page 1 has %d rects, want 2", len(p1))
	}
	if !(p1[0].Y < p1[1].Y) {
		t.Errorf("page 1 rects out of order: %+v", p1)
	}
	for _, r := range p1 {
		if r.Space != geometry.Display {
			t.Errorf("rect space = %v, want display", r.Space)
		}
	}
}

func TestSearchAll(t *testing.T) {
	pages := []PageText{
		pageText(1, 1.5, "invoice total", "total due", "nothing"),
		pageText(2, 1.5, "INVOICE"),
	}
	ph, counts, err := SearchAll([]string{"total", "", "invoice", "zebra"}, pages)
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}
	if got := ph.Total(); got != 3 {
		t.Fatalf("Total = %d, want 3: %+v", got, ph)
	}
	if p1 := ph[1]; len(p1) != 2 || !(p1[0].Y < p1[1].Y) {
		t.Errorf("page 1 rects = %+v, want two in run order", p1)
	}
	want := []int{2, 0, 2, 0}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts = %v, want %v", counts, want)
			break
		}
	}

	ph, counts, err = SearchAll([]string{" ", ""}, pages)
	if err != nil || len(ph) != 0 || len(counts) != 2 {
		t.Errorf("blank terms = %v, %v, %v", ph, counts, err)
	}
}

func TestSearch_BlankTerm(t *testing.T) {
	pages := []PageText{pageText(1, 1, "   ", "")}
	for _, term := range []string{"", " ", "\t\n"} {
		ph, err := Search(term, pages)
		if err != nil {
			t.Fatalf("Search(%q): %v", term, err)
		}
		if len(ph) != 0 {
			t.Errorf("Search(%q) = %v, want empty", term, ph)
		}
	}
}

func TestSearch_InvalidScale(t *testing.T) {
	_, err := Search("a", []PageText{pageText(1, 0, "a")})
	if !errors.Is(err, ErrInvalidScale) {
		t.Errorf("err = %v, want ErrInvalidScale", err)
	}
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		term, text string
		want       bool
	}{
		{"world", "Hello WORLD", true},
		{"ÉCOLE", "une école", true},
		{"école", "école", true},
		{"hello", "help", false},
		{"hello ", "hello", false},
	}
	for _, tt := range tests {
		m, ok := NewMatcher(tt.term)
		if !ok {
			t.Fatalf("NewMatcher(%q) not ok", tt.term)
		}
		if got := m.Match(tt.text); got != tt.want {
			t.Errorf("Match(%q in %q) = %v, want %v", tt.term, tt.text, got, tt.want)
		}
	}
}

func TestExportAnnotations(t *testing.T) {
	ph, err := Search("hello", []PageText{
		pageText(2, 2, "hello"),
		pageText(1, 2, "HELLO", "hello"),
	})
	if err != nil {
		t.Fatal(err)
	}
	anns, err := ExportAnnotations(ph, map[int]geometry.Size{1: letter, 2: letter}, 2)
	if err != nil {
		t.Fatalf("ExportAnnotations: %v", err)
	}
	if len(anns) != 3 {
		t.Fatalf("got %d annotations, want 3", len(anns))
	}
	wantPages := []int{1, 1, 2}
	for i, a := range anns {
		if a.Page != wantPages[i] {
			t.Errorf("annotation %d page = %d, want %d", i, a.Page, wantPages[i])
		}
		if a.Rect.Space != geometry.Document {
			t.Errorf("annotation %d space = %v, want document", i, a.Rect.Space)
		}
	}
	if anns[0].Rect.Y != 720 || anns[1].Rect.Y != 706 {
		t.Errorf("page 1 y = %v, %v, want 720, 706", anns[0].Rect.Y, anns[1].Rect.Y)
	}
}

func TestExportAnnotations_UnknownPage(t *testing.T) {
	ph := PageHighlights{4: {{X: 1, Y: 1, Width: 1, Height: 1, Space: geometry.Display}}}
	if _, err := ExportAnnotations(ph, map[int]geometry.Size{1: letter}, 1); !errors.Is(err, ErrUnknownPage) {
		t.Errorf("err = %v, want ErrUnknownPage", err)
	}
}

func TestExportAnnotations_Empty(t *testing.T) {
	anns, err := ExportAnnotations(PageHighlights{1: nil}, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 0 {
		t.Errorf("got %d annotations, want 0", len(anns))
	}
}
