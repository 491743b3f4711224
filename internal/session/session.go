package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/marcador/internal/annotate"
	"github.com/hyperjump/marcador/internal/extract"
	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/hyperjump/marcador/internal/models"
)

// Result is the outcome of one search. Scale is the scale the highlights were
// computed at and is the one used to export them.
type Result struct {
	Term       string
	Scale      float64
	Highlights highlight.PageHighlights
	At         time.Time
}

// Total returns the number of highlights.
func (r *Result) Total() int {
	if r == nil {
		return 0
	}
	return r.Highlights.Total()
}

// Session is one open document with its display scale and current result.
// A Session is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	id        string
	name      string
	content   []byte
	doc       *extract.Document
	scale     float64
	result    *Result
	createdAt time.Time
	env       *env
}

// env is what a Session shares with its Manager.
type env struct {
	writer      AnnotationWriter
	store       Store
	logger      *zap.Logger
	onNoMatches NoMatchesFunc
	style       annotate.Style
	decorations []annotate.Mark
}

// Info is a point-in-time view of a Session.
type Info struct {
	ID        string
	Name      string
	Scale     float64
	Pages     []models.PageInfo
	Result    *Result
	CreatedAt time.Time
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:        s.id,
		Name:      s.name,
		Scale:     s.scale,
		Pages:     make([]models.PageInfo, 0, s.doc.NumPages()),
		Result:    s.result,
		CreatedAt: s.createdAt,
	}
	for _, p := range s.doc.Pages {
		vp := highlight.NewViewport(p.Number, s.scale, p.Size)
		px := vp.PixelSize()
		info.Pages = append(info.Pages, models.PageInfo{
			Page:        p.Number,
			Width:       p.Size.Width,
			Height:      p.Size.Height,
			PixelWidth:  px.Width,
			PixelHeight: px.Height,
		})
	}
	return info
}

// Result returns the current result, or nil when there is none.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SetScale changes the display scale used by later searches. The current
// result keeps the scale it was computed at.
func (s *Session) SetScale(scale float64) error {
	if !(scale > 0) {
		return fmt.Errorf("%w: got %v", highlight.ErrInvalidScale, scale)
	}
	s.mu.Lock()
	s.scale = scale
	s.mu.Unlock()
	return nil
}

// Search finds term on every page at the session scale and replaces the
// current result. A blank term changes nothing and returns an empty result.
// When nothing matches, the no-matches callback runs exactly once.
func (s *Session) Search(ctx context.Context, term string) (*Result, error) {
	return s.SearchTerms(ctx, term)
}

// SearchTerms is Search for several terms at once. A run matching any
// non-blank term is highlighted once, in run order within each page. Each term
// is recorded in the search history with the number of runs it matched.
func (s *Session) SearchTerms(ctx context.Context, terms ...string) (*Result, error) {
	active := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := highlight.NewMatcher(t); ok {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		s.mu.Lock()
		scale := s.scale
		s.mu.Unlock()
		return &Result{Term: strings.Join(terms, termSeparator), Scale: scale, Highlights: highlight.PageHighlights{}}, nil
	}

	res, totals, err := s.search(active)
	if err != nil {
		return nil, err
	}
	total := res.Total()
	s.env.logger.Debug("search finished",
		zap.String("session", s.id), zap.Strings("terms", active), zap.Int("total", total))
	if total == 0 && s.env.onNoMatches != nil {
		s.env.onNoMatches(s.id, res.Term)
	}
	if s.env.store != nil {
		for i, t := range active {
			rec := &models.SearchRecord{DocumentID: s.id, Term: t, Scale: res.Scale, Total: totals[i]}
			if err := s.env.store.RecordSearch(ctx, rec); err != nil {
				s.env.logger.Warn("record search failed", zap.String("session", s.id), zap.Error(err))
			}
		}
	}
	return res, nil
}

// termSeparator joins the terms of a multi-term result.
const termSeparator = ", "

func (s *Session) search(terms []string) (*Result, []int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ph, totals, err := highlight.SearchAll(terms, s.doc.PageTexts(s.scale))
	if err != nil {
		return nil, nil, fmt.Errorf("search %q: %w", strings.Join(terms, termSeparator), err)
	}
	s.result = &Result{Term: strings.Join(terms, termSeparator), Scale: s.scale, Highlights: ph, At: time.Now()}
	return s.result, totals, nil
}

// Export writes a copy of the document with the current highlights to dst.
// Nothing is written to dst unless the whole copy was produced.
func (s *Session) Export(ctx context.Context, dst io.Writer) error {
	data, err := s.render(ctx)
	if err != nil {
		return err
	}
	if _, err := dst.Write(data); err != nil {
		s.env.logger.Error("export write failed", zap.String("session", s.id), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	return nil
}

// ExportTo saves the highlighted copy through sink under name and returns
// the location written.
func (s *Session) ExportTo(ctx context.Context, sink Sink, name string) (string, error) {
	data, err := s.render(ctx)
	if err != nil {
		return "", err
	}
	path, err := sink.Save(name, data)
	if err != nil {
		s.env.logger.Error("export save failed", zap.String("session", s.id), zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrExport, err)
	}
	return path, nil
}

// render produces the highlighted copy in memory.
func (s *Session) render(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result.Total() == 0 {
		return nil, ErrNothingToExport
	}
	anns, err := highlight.ExportAnnotations(s.result.Highlights, s.doc.PageSizes(), s.result.Scale)
	if err != nil {
		s.env.logger.Error("export projection failed", zap.String("session", s.id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}

	marks := make([]annotate.Mark, 0, len(anns)+len(s.env.decorations))
	for _, a := range anns {
		marks = append(marks, annotate.Mark{Page: a.Page, Rect: a.Rect, Kind: annotate.Highlight, Style: s.env.style})
	}
	for _, d := range s.env.decorations {
		if d.Page > s.doc.NumPages() {
			continue
		}
		marks = append(marks, d)
	}

	var buf bytes.Buffer
	if err := s.env.writer.Write(s.content, marks, &buf); err != nil {
		s.env.logger.Error("export failed", zap.String("session", s.id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	s.env.logger.Info("exported highlights",
		zap.String("session", s.id), zap.Int("annotations", len(anns)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// replace swaps in a new file and drops the current result.
func (s *Session) replace(name string, content []byte, doc *extract.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.content = content
	s.doc = doc
	s.result = nil
}

// record returns the stored form of the session.
func (s *Session) record() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Document{
		ID:        s.id,
		Name:      s.name,
		Content:   s.content,
		PageCount: s.doc.NumPages(),
		Scale:     s.scale,
	}
}
