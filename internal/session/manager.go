package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/marcador/internal/annotate"
	"github.com/hyperjump/marcador/internal/extract"
	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/hyperjump/marcador/internal/models"
	"github.com/hyperjump/marcador/internal/storage"
)

// DefaultScale is the display scale used when none is configured.
const DefaultScale = 1.5

// Manager owns the open sessions. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	loader   Loader
	scale    float64
	env      *env
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists documents and searches in store.
func WithStore(store Store) Option {
	return func(m *Manager) { m.env.store = store }
}

// WithLogger sets the logger used by the manager and its sessions.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.env.logger = l }
}

// WithNoMatches sets the callback run when a search finds nothing.
func WithNoMatches(fn NoMatchesFunc) Option {
	return func(m *Manager) { m.env.onNoMatches = fn }
}

// WithScale sets the display scale of new sessions.
func WithScale(scale float64) Option {
	return func(m *Manager) { m.scale = scale }
}

// WithStyle sets how highlights are painted on export.
func WithStyle(style annotate.Style) Option {
	return func(m *Manager) { m.env.style = style }
}

// WithDecorations adds fixed marks to every export. Marks on pages a document
// does not have are skipped.
func WithDecorations(marks []annotate.Mark) Option {
	return func(m *Manager) { m.env.decorations = marks }
}

// NewManager returns a Manager loading documents with loader and exporting
// with writer.
func NewManager(loader Loader, writer AnnotationWriter, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		loader:   loader,
		scale:    DefaultScale,
		env: &env{
			writer: writer,
			style:  annotate.Style{Color: annotate.Yellow, Opacity: 0.5},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.env.logger == nil {
		m.env.logger = zap.NewNop()
	}
	return m
}

// Open loads content into a new session. A scale of zero uses the manager's
// default scale.
func (m *Manager) Open(ctx context.Context, name string, content []byte, scale float64) (*Session, error) {
	if scale == 0 {
		scale = m.scale
	}
	if !(scale > 0) {
		return nil, fmt.Errorf("%w: got %v", highlight.ErrInvalidScale, scale)
	}
	doc, err := m.load(content)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:        uuid.NewString(),
		name:      name,
		content:   content,
		doc:       doc,
		scale:     scale,
		createdAt: time.Now(),
		env:       m.env,
	}
	if m.env.store != nil {
		rec := s.record()
		if err := m.env.store.CreateDocument(ctx, rec); err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
		if !rec.CreatedAt.IsZero() {
			s.createdAt = rec.CreatedAt
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.env.logger.Info("opened document",
		zap.String("session", s.id), zap.String("name", name), zap.Int("pages", doc.NumPages()))
	return s, nil
}

// Get returns the session with id, restoring it from the store when it is not
// open.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if m.env.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec, err := m.env.store.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc, err := m.load(rec.Content)
	if err != nil {
		return nil, err
	}
	s = &Session{
		id:        rec.ID,
		name:      rec.Name,
		content:   rec.Content,
		doc:       doc,
		scale:     rec.Scale,
		createdAt: rec.CreatedAt,
		env:       m.env,
	}
	if !(s.scale > 0) {
		s.scale = m.scale
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another request may have restored it meanwhile
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = s
	m.env.logger.Debug("restored session", zap.String("session", id))
	return s, nil
}

// Reload replaces the document of an existing session. Its current result is
// discarded.
func (m *Manager) Reload(ctx context.Context, id, name string, content []byte) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := m.load(content)
	if err != nil {
		return nil, err
	}
	s.replace(name, content, doc)
	if m.env.store != nil {
		if err := m.env.store.UpdateDocument(ctx, s.record()); err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
	}
	m.env.logger.Info("reloaded document", zap.String("session", id), zap.String("name", name))
	return s, nil
}

// Close forgets the session and deletes it from the store.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	_, open := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.env.store == nil {
		if !open {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	}
	if !open {
		if _, err := m.env.store.GetDocument(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("get document: %w", err)
		}
	}
	if err := m.env.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	m.env.logger.Info("closed session", zap.String("session", id))
	return nil
}

// History returns the most recent searches of a session.
func (m *Manager) History(ctx context.Context, id string, limit int) ([]*models.SearchRecord, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	if m.env.store == nil {
		return nil, nil
	}
	return m.env.store.ListSearches(ctx, id, limit)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) load(content []byte) (*extract.Document, error) {
	doc, err := m.loader.Load(content)
	if err != nil {
		m.env.logger.Debug("load failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc, nil
}
