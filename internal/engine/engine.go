// Package engine keeps a live model and its repository in step: it exports
// the model into the working tree, commits, reloads the model after a
// checkout and talks to the remote.
//
// Every call is synchronous. At most one call runs against a working tree at
// a time; calls on different repositories run independently.
package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/branch"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/repo"
	"github.com/kurobon/modelrepo/internal/vcs"
)

// DefaultAuthor signs commits when no author is configured.
var DefaultAuthor = vcs.Author{Name: "Model Repository", Email: "modelrepo@localhost"}

// Publisher receives repository notifications; *event.Bus implements it.
type Publisher interface {
	Publish(kind event.Kind, h *repo.Handle)
}

// CommitID is the hash of a recorded commit.
type CommitID string

func (c CommitID) String() string { return string(c) }

// Short returns the abbreviated hash.
func (c CommitID) Short() string {
	if len(c) > 7 {
		return string(c[:7])
	}
	return string(c)
}

// Engine runs synchronisation operations. Create one with New and share it
// between all callers so that the per-repository locks are shared too.
type Engine struct {
	author    vcs.Author
	publisher Publisher
	tracker   branch.Tracker

	mu        sync.Mutex
	locks     map[string]chan struct{}
	committed map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuthor sets the commit signature.
func WithAuthor(a vcs.Author) Option {
	return func(e *Engine) {
		if a.Name != "" {
			e.author.Name = a.Name
		}
		if a.Email != "" {
			e.author.Email = a.Email
		}
	}
}

// WithPublisher sends repository notifications to p.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		author:    DefaultAuthor,
		locks:     make(map[string]chan struct{}),
		committed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Author returns the commit signature in use.
func (e *Engine) Author() vcs.Author { return e.author }

// Tracker returns the branch tracker used by the engine.
func (e *Engine) Tracker() branch.Tracker { return e.tracker }

// lock acquires the working-tree lock of h, giving up when ctx is done.
func (e *Engine) lock(ctx context.Context, h *repo.Handle) (func(), error) {
	e.mu.Lock()
	sem, ok := e.locks[h.Root()]
	if !ok {
		sem = make(chan struct{}, 1)
		e.locks[h.Root()] = sem
	}
	e.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) setCommitted(h *repo.Handle, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v {
		e.committed[h.Root()] = true
	} else {
		delete(e.committed, h.Root())
	}
}

func (e *Engine) wasCommitted(h *repo.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed[h.Root()]
}

func (e *Engine) publish(kind event.Kind, h *repo.Handle) {
	if e.publisher == nil {
		return
	}
	log.Debug().Str("repo", h.Name()).Stringer("event", kind).Msg("publishing")
	e.publisher.Publish(kind, h)
}

func codecFor(h *repo.Handle) *grafico.Codec {
	return grafico.New(grafico.WithIgnore(h.Ignore()))
}
