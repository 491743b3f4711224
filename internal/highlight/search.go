package highlight

import (
	"fmt"
	"strings"

	"github.com/hyperjump/marcador/internal/geometry"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Matcher reports whether text contains a term, ignoring case.
// A Matcher is not safe for concurrent use.
type Matcher struct {
	caser  cases.Caser
	folded string
}

// NewMatcher returns a matcher for term. ok is false when term is empty or only
// whitespace, in which case nothing should be searched.
func NewMatcher(term string) (m *Matcher, ok bool) {
	if strings.TrimSpace(term) == "" {
		return nil, false
	}
	m = &Matcher{caser: cases.Fold()}
	m.folded = m.fold(term)
	return m, true
}

func (m *Matcher) fold(s string) string {
	return m.caser.String(norm.NFC.String(s))
}

// Match reports whether s contains the term.
func (m *Matcher) Match(s string) bool {
	return strings.Contains(m.fold(s), m.folded)
}

// Search finds every run containing term, case-insensitively, and returns one
// display-space rectangle per matching run. Every page in pages gets an entry,
// empty when nothing matched. A blank term returns an empty result without
// looking at any page.
func Search(term string, pages []PageText) (PageHighlights, error) {
	ph, _, err := SearchAll([]string{term}, pages)
	return ph, err
}

// SearchAll is Search for several terms in one pass. A run matching more than
// one term still yields a single rectangle, in run order. Counts holds the
// number of runs each term matched; blank terms are skipped and count zero.
func SearchAll(terms []string, pages []PageText) (ph PageHighlights, counts []int, err error) {
	counts = make([]int, len(terms))
	matchers := make([]*Matcher, 0, len(terms))
	index := make([]int, 0, len(terms))
	for i, term := range terms {
		if m, ok := NewMatcher(term); ok {
			matchers = append(matchers, m)
			index = append(index, i)
		}
	}
	if len(matchers) == 0 {
		return PageHighlights{}, counts, nil
	}
	ph = make(PageHighlights, len(pages))
	for _, pt := range pages {
		page := pt.Viewport.Page
		rects := ph[page]
		if rects == nil {
			rects = make([]geometry.Rect, 0)
		}
		for _, run := range pt.Runs {
			hit := false
			for j, m := range matchers {
				if m.Match(run.Text) {
					counts[index[j]]++
					hit = true
				}
			}
			if !hit {
				continue
			}
			r, err := ToDisplayRect(run.Hit(page), pt.Viewport)
			if err != nil {
				return nil, nil, fmt.Errorf("page %d: %w", page, err)
			}
			rects = append(rects, r)
		}
		ph[page] = rects
	}
	return ph, counts, nil
}
