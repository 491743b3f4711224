package extract

import (
	"strings"

	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/ledongthuc/pdf"
)

const (
	// gaps wider than this many ems split a run
	maxGapEm = 1.0
	// gaps wider than this many ems become a space
	spaceGapEm = 0.2
)

// groupRuns merges glyphs that share font, size and baseline into runs. The
// run anchor is the origin of its first glyph, its width reaches the end of
// the last glyph and its height is the font size. Runs of only whitespace are
// dropped.
func groupRuns(glyphs []pdf.Text) []highlight.TextRun {
	var (
		runs  []highlight.TextRun
		sb    strings.Builder
		first pdf.Text
		last  pdf.Text
		open  bool
	)
	flush := func() {
		if !open {
			return
		}
		open = false
		text := sb.String()
		sb.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		runs = append(runs, highlight.TextRun{
			Text:   text,
			Anchor: geometry.Point{X: first.X, Y: first.Y},
			Width:  last.X + last.W - first.X,
			Height: first.FontSize,
		})
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if open {
			gap := g.X - (last.X + last.W)
			em := last.FontSize
			if !pdf.IsSameSentence(last, g) || gap > maxGapEm*em || g.X < last.X {
				flush()
			} else if gap > spaceGapEm*em && last.S != " " && g.S != " " {
				sb.WriteByte(' ')
			}
		}
		if !open {
			open = true
			first = g
		}
		sb.WriteString(g.S)
		last = g
	}
	flush()
	return runs
}
