package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/marcador/internal/fileid"
	"github.com/hyperjump/marcador/internal/session"
	"github.com/hyperjump/marcador/internal/sink"
)

// ErrNoTerms is returned by NewInbox when no search term is configured.
var ErrNoTerms = errors.New("watch mode needs at least one term")

// Outcome is what processing one file did.
type Outcome struct {
	Path    string
	Output  string // written copy, empty when nothing was written
	Matches int
	Skipped bool // content already processed
}

// Inbox highlights the configured terms in each PDF handed to Process and
// saves the copies that have matches.
type Inbox struct {
	manager *session.Manager
	sink    session.Sink
	terms   []string
	logger  *zap.Logger

	mu   sync.Mutex
	seen map[string]string // path id -> content digest
}

// NewInbox returns an Inbox opening files in manager and saving into out.
func NewInbox(manager *session.Manager, out session.Sink, terms []string, logger *zap.Logger) (*Inbox, error) {
	if len(terms) == 0 {
		return nil, ErrNoTerms
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		manager: manager,
		sink:    out,
		terms:   terms,
		logger:  logger,
		seen:    make(map[string]string),
	}, nil
}

// Process highlights one file. A file whose content was already processed
// is skipped.
func (in *Inbox) Process(ctx context.Context, path string) (Outcome, error) {
	out := Outcome{Path: path}
	content, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read %s: %w", path, err)
	}
	id, digest := fileid.PathID(path), fileid.Digest(content)

	in.mu.Lock()
	if in.seen[id] == digest {
		in.mu.Unlock()
		out.Skipped = true
		return out, nil
	}
	in.mu.Unlock()

	sess, err := in.manager.Open(ctx, filepath.Base(path), content, 0)
	if err != nil {
		return out, err
	}
	defer func() {
		if err := in.manager.Close(context.WithoutCancel(ctx), sess.ID()); err != nil {
			in.logger.Warn("close session failed", zap.String("path", path), zap.Error(err))
		}
	}()

	res, err := sess.SearchTerms(ctx, in.terms...)
	if err != nil {
		return out, err
	}
	out.Matches = res.Total()
	if out.Matches > 0 {
		out.Output, err = sess.ExportTo(ctx, in.sink, sink.OutputName(path))
		if err != nil {
			return out, err
		}
	}

	in.mu.Lock()
	in.seen[id] = digest
	in.mu.Unlock()
	in.logger.Info("processed file",
		zap.String("path", path), zap.Int("matches", out.Matches), zap.String("output", out.Output))
	return out, nil
}

// Forget drops what is known about path, so the same content is processed
// again if it comes back.
func (in *Inbox) Forget(path string) {
	in.mu.Lock()
	delete(in.seen, fileid.PathID(path))
	in.mu.Unlock()
}

// Handle is a Watcher callback running Process and logging failures.
func (in *Inbox) Handle(ctx context.Context) func(path string) {
	return func(path string) {
		if _, err := in.Process(ctx, path); err != nil {
			in.logger.Error("process file failed", zap.String("path", path), zap.Error(err))
		}
	}
}
