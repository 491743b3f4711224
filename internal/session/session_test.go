package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/hyperjump/marcador/internal/annotate"
	"github.com/hyperjump/marcador/internal/extract"
	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/hyperjump/marcador/internal/models"
	"github.com/hyperjump/marcador/internal/storage"
)

var letter = geometry.Size{Width: 612, Height: 792}

// fakeLoader returns a two-page document for any content except "bad".
type fakeLoader struct{}

func (fakeLoader) Load(content []byte) (*extract.Document, error) {
	if string(content) == "bad" {
		return nil, errors.New("not a pdf")
	}
	return &extract.Document{Pages: []extract.Page{
		{Number: 1, Size: letter, Runs: []highlight.TextRun{
			{Text: "hello world", Anchor: geometry.Point{X: 100, Y: 700}, Width: 80, Height: 12},
			{Text: "nothing", Anchor: geometry.Point{X: 100, Y: 680}, Width: 40, Height: 12},
			{Text: "Hello again", Anchor: geometry.Point{X: 100, Y: 660}, Width: 70, Height: 12},
		}},
		{Number: 2, Size: letter},
	}}, nil
}

type fakeWriter struct {
	mu    sync.Mutex
	marks []annotate.Mark
	err   error
}

func (w *fakeWriter) Write(src []byte, marks []annotate.Mark, dst io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.marks = marks
	if w.err != nil {
		return w.err
	}
	_, err := fmt.Fprintf(dst, "%s+%d", src, len(marks))
	return err
}

type fakeSink struct {
	saved map[string][]byte
	err   error
}

func (s *fakeSink) Save(name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "/out/" + name, nil
}

type memStore struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	searches []*models.SearchRecord
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*models.Document)}
}

func (s *memStore) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *doc
	s.docs[doc.ID] = &c
	return nil
}

func (s *memStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, storage.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (s *memStore) UpdateDocument(ctx context.Context, doc *models.Document) error {
	if _, err := s.GetDocument(ctx, doc.ID); err != nil {
		return err
	}
	return s.CreateDocument(ctx, doc)
}

func (s *memStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *memStore) RecordSearch(_ context.Context, rec *models.SearchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, rec)
	return nil
}

func (s *memStore) ListSearches(_ context.Context, docID string, limit int) ([]*models.SearchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SearchRecord
	for i := len(s.searches) - 1; i >= 0 && len(out) < limit; i-- {
		if s.searches[i].DocumentID == docID {
			out = append(out, s.searches[i])
		}
	}
	return out, nil
}

func openSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Open(context.Background(), "doc.pdf", []byte("PDF"), 1.5)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSession_SearchAndExport(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager(fakeLoader{}, w)
	s := openSession(t, m)
	ctx := context.Background()

	res, err := s.Search(ctx, "HELLO")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total() != 2 {
		t.Fatalf("Total = %d, want 2", res.Total())
	}
	if len(res.Highlights[2]) != 0 {
		t.Errorf("page 2 should have an empty entry, got %v", res.Highlights[2])
	}
	want := geometry.Rect{X: 150, Y: 120, Width: 120, Height: 18, Space: geometry.Display}
	if got := res.Highlights[1][0]; got != want {
		t.Errorf("first rect = %+v, want %+v", got, want)
	}

	var out bytes.Buffer
	if err := s.Export(ctx, &out); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if out.String() != "PDF+2" {
		t.Errorf("export output = %q", out.String())
	}
	if len(w.marks) != 2 {
		t.Fatalf("writer got %d marks, want 2", len(w.marks))
	}
	m0 := w.marks[0]
	wantDoc := geometry.Rect{X: 100, Y: 700, Width: 80, Height: 12, Space: geometry.Document}
	if m0.Page != 1 || m0.Rect != wantDoc || m0.Kind != annotate.Highlight {
		t.Errorf("first mark = %+v", m0)
	}
	if m0.Style.Color != annotate.Yellow {
		t.Errorf("default color = %+v, want yellow", m0.Style.Color)
	}
}

func TestSession_NoMatchesReportedOncePerSearch(t *testing.T) {
	var calls []string
	m := NewManager(fakeLoader{}, &fakeWriter{}, WithNoMatches(func(_, term string) {
		calls = append(calls, term)
	}))
	s := openSession(t, m)
	ctx := context.Background()

	steps := []struct {
		term      string
		wantCalls int
	}{
		{"zebra", 1},
		{"zebra", 2},
		{"hello", 2},
		{"   ", 2},
		{"", 2},
		{"quartz", 3},
	}
	for _, st := range steps {
		if _, err := s.Search(ctx, st.term); err != nil {
			t.Fatalf("Search(%q): %v", st.term, err)
		}
		if len(calls) != st.wantCalls {
			t.Fatalf("after Search(%q): %d notifications, want %d", st.term, len(calls), st.wantCalls)
		}
	}
}

func TestSession_BlankTermKeepsResult(t *testing.T) {
	m := NewManager(fakeLoader{}, &fakeWriter{})
	s := openSession(t, m)
	ctx := context.Background()

	if _, err := s.Search(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	res, err := s.Search(ctx, " \t ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Total() != 0 || len(res.Highlights) != 0 {
		t.Errorf("blank search returned %+v", res)
	}
	if cur := s.Result(); cur == nil || cur.Term != "hello" {
		t.Errorf("current result = %+v, want the hello result", cur)
	}
}

func TestSession_SearchReplacesResult(t *testing.T) {
	m := NewManager(fakeLoader{}, &fakeWriter{})
	s := openSession(t, m)
	ctx := context.Background()

	if _, err := s.Search(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Search(ctx, "nothing"); err != nil {
		t.Fatal(err)
	}
	cur := s.Result()
	if cur.Term != "nothing" || cur.Total() != 1 {
		t.Errorf("result = %q with %d rects, want nothing with 1", cur.Term, cur.Total())
	}
}

func TestSession_ExportNothing(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager(fakeLoader{}, w)
	s := openSession(t, m)
	ctx := context.Background()

	var out bytes.Buffer
	if err := s.Export(ctx, &out); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("before search: err = %v, want ErrNothingToExport", err)
	}
	if _, err := s.Search(ctx, "zebra"); err != nil {
		t.Fatal(err)
	}
	if err := s.Export(ctx, &out); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("after empty search: err = %v, want ErrNothingToExport", err)
	}
	if out.Len() != 0 || w.marks != nil {
		t.Error("nothing should have been written")
	}
}

func TestSession_ExportFailure(t *testing.T) {
	m := NewManager(fakeLoader{}, &fakeWriter{err: errors.New("disk on fire")})
	s := openSession(t, m)
	ctx := context.Background()
	if _, err := s.Search(ctx, "hello"); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := s.Export(ctx, &out)
	if !errors.Is(err, ErrExport) {
		t.Fatalf("err = %v, want ErrExport", err)
	}
	if out.Len() != 0 {
		t.Errorf("partial output written: %q", out.String())
	}
}

func TestSession_ExportUsesResultScale(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager(fakeLoader{}, w)
	s := openSession(t, m)
	ctx := context.Background()

	if _, err := s.Search(ctx, "hello world"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetScale(3); err != nil {
		t.Fatal(err)
	}
	if err := s.Export(ctx, io.Discard); err != nil {
		t.Fatal(err)
	}
	want := geometry.Rect{X: 100, Y: 700, Width: 80, Height: 12, Space: geometry.Document}
	if len(w.marks) != 1 || w.marks[0].Rect != want {
		t.Errorf("marks = %+v, want one at %+v", w.marks, want)
	}
	if err := s.SetScale(0); !errors.Is(err, highlight.ErrInvalidScale) {
		t.Errorf("SetScale(0) err = %v, want ErrInvalidScale", err)
	}
}

func TestSession_Decorations(t *testing.T) {
	w := &fakeWriter{}
	deco := []annotate.Mark{
		{Page: 1, Rect: geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}, Kind: annotate.Square},
		{Page: 9, Rect: geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}, Kind: annotate.Square},
	}
	m := NewManager(fakeLoader{}, w, WithDecorations(deco))
	s := openSession(t, m)
	ctx := context.Background()
	if _, err := s.Search(ctx, "again"); err != nil {
		t.Fatal(err)
	}
	if err := s.Export(ctx, io.Discard); err != nil {
		t.Fatal(err)
	}
	if len(w.marks) != 2 {
		t.Fatalf("got %d marks, want highlight plus one decoration", len(w.marks))
	}
	if w.marks[1].Kind != annotate.Square || w.marks[1].Page != 1 {
		t.Errorf("decoration mark = %+v", w.marks[1])
	}
}

func TestSession_ExportTo(t *testing.T) {
	m := NewManager(fakeLoader{}, &fakeWriter{})
	s := openSession(t, m)
	ctx := context.Background()
	if _, err := s.Search(ctx, "hello"); err != nil {
		t.Fatal(err)
	}

	sink := &fakeSink{}
	path, err := s.ExportTo(ctx, sink, "marcado.pdf")
	if err != nil {
		t.Fatalf("ExportTo: %v", err)
	}
	if path != "/out/marcado.pdf" || string(sink.saved["marcado.pdf"]) != "PDF+2" {
		t.Errorf("path = %q, saved = %q", path, sink.saved)
	}

	_, err = s.ExportTo(ctx, &fakeSink{err: errors.New("read-only")}, "marcado.pdf")
	if !errors.Is(err, ErrExport) {
		t.Errorf("err = %v, want ErrExport", err)
	}
}

func TestSession_Info(t *testing.T) {
	m := NewManager(fakeLoader{}, &fakeWriter{})
	s := openSession(t, m)
	info := s.Info()
	if info.Name != "doc.pdf" || info.Scale != 1.5 || len(info.Pages) != 2 {
		t.Fatalf("info = %+v", info)
	}
	if p := info.Pages[0]; p.PixelWidth != 918 || p.PixelHeight != 1188 {
		t.Errorf("pixel size = %vx%v, want 918x1188", p.PixelWidth, p.PixelHeight)
	}
}

func TestSession_ConcurrentSearch(t *testing.T) {
	m := NewManager(fakeLoader{}, &fakeWriter{})
	s := openSession(t, m)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			term := "hello"
			if i%2 == 1 {
				term = "nothing"
			}
			if _, err := s.Search(ctx, term); err != nil {
				t.Error(err)
			}
			_ = s.Export(ctx, io.Discard)
		}(i)
	}
	wg.Wait()
	if s.Result() == nil {
		t.Error("expected a result after concurrent searches")
	}
}

func TestSession_SearchTerms(t *testing.T) {
	store := newMemStore()
	m := NewManager(fakeLoader{}, &fakeWriter{}, WithStore(store))
	s := openSession(t, m)

	res, err := s.SearchTerms(context.Background(), "again", "", "world", "zebra")
	if err != nil {
		t.Fatal(err)
	}
	if res.Term != "again, world, zebra" {
		t.Errorf("term = %q", res.Term)
	}
	if res.Total() != 2 || len(res.Highlights) != 2 {
		t.Fatalf("result = %+v", res)
	}
	// run order, not term order: "world" is on the first run
	if first := res.Highlights[1][0]; first.Y >= res.Highlights[1][1].Y {
		t.Errorf("highlights out of run order: %+v", res.Highlights[1])
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.searches) != 3 {
		t.Fatalf("recorded %d searches, want 3", len(store.searches))
	}
	wantTotals := []int{1, 1, 0}
	for i, rec := range store.searches {
		if rec.Total != wantTotals[i] {
			t.Errorf("search %d (%s) total = %d, want %d", i, rec.Term, rec.Total, wantTotals[i])
		}
	}
}

func TestSession_SearchTerms_RunMatchingSeveralTerms(t *testing.T) {
	store := newMemStore()
	m := NewManager(fakeLoader{}, &fakeWriter{}, WithStore(store))
	s := openSession(t, m)

	res, err := s.SearchTerms(context.Background(), "hello", "world")
	if err != nil {
		t.Fatal(err)
	}
	// "hello world" matches both terms but is highlighted once
	if got := res.Total(); got != 2 {
		t.Fatalf("Total = %d, want 2: %+v", got, res.Highlights[1])
	}
	if a, b := res.Highlights[1][0], res.Highlights[1][1]; a == b {
		t.Errorf("duplicate rectangle %+v", a)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	wantTotals := map[string]int{"hello": 2, "world": 1}
	for _, rec := range store.searches {
		if rec.Total != wantTotals[rec.Term] {
			t.Errorf("%s total = %d, want %d", rec.Term, rec.Total, wantTotals[rec.Term])
		}
	}
}
