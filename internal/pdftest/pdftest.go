// Package pdftest builds small, valid PDF files for tests.
//
// Every page uses Helvetica with a fixed advance of 500/1000 em per glyph, so a
// line of n characters at size s is exactly n*s/2 units wide.
package pdftest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// GlyphAdvance is the width of every glyph in thousandths of an em.
const GlyphAdvance = 500

// Line is one line of text drawn at baseline (X, Y).
type Line struct {
	X, Y float64
	Size float64
	Text string
}

// Page is a page of the given size with some lines of text.
type Page struct {
	Width, Height float64
	Lines         []Line
}

// Letter returns a US Letter page holding lines.
func Letter(lines ...Line) Page {
	return Page{Width: 612, Height: 792, Lines: lines}
}

// Width returns the rendered width of text at size.
func Width(text string, size float64) float64 {
	return float64(len(text)) * GlyphAdvance / 1000 * size
}

// Build returns the bytes of a PDF holding pages.
func Build(pages ...Page) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1 catalog, 2 page tree, 3 font, then a page and its content per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = fmt.Sprint(GlyphAdvance)
	}
	obj(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		strings.Join(widths, " ")))

	for i, p := range pages {
		var content strings.Builder
		for _, l := range p.Lines {
			fmt.Fprintf(&content, "BT /F1 %s Tf %s %s Td (%s) Tj ET\n", num(l.Size), num(l.X), num(l.Y), escape(l.Text))
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			num(p.Width), num(p.Height), 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
