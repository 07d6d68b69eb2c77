package model

import "sync"

// Host is the application that owns the live model graph. The engine only
// reads a snapshot of the graph and swaps in a freshly imported one.
type Host interface {
	// Graph returns a snapshot that stays valid after the host mutates the
	// live model.
	Graph() *Graph
	// Snapshot is Graph together with the generation it was taken at.
	Snapshot() (*Graph, uint64)
	ReplaceGraph(g *Graph)
	MarkDirty(dirty bool)
	// MarkClean clears the dirty flag only when nothing changed since the
	// snapshot of generation gen, and reports whether it did.
	MarkClean(gen uint64) bool
	IsDirty() bool
}

// Live is an in-memory Host guarded by a mutex. Every replacement, edit or
// MarkDirty(true) starts a new generation.
type Live struct {
	mu    sync.RWMutex
	graph *Graph
	dirty bool
	gen   uint64
}

// NewLive wraps g as a live model. A nil graph starts empty.
func NewLive(g *Graph) *Live {
	if g == nil {
		g = NewGraph(NewID(), "")
	}
	return &Live{graph: g}
}

func (l *Live) Graph() *Graph {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.graph.Clone()
}

func (l *Live) Snapshot() (*Graph, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.graph.Clone(), l.gen
}

func (l *Live) ReplaceGraph(g *Graph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.graph = g
	l.gen++
}

func (l *Live) MarkDirty(dirty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty = dirty
	if dirty {
		l.gen++
	}
}

func (l *Live) MarkClean(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	l.dirty = false
	return true
}

func (l *Live) IsDirty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty
}

// Edit applies fn to the live graph under the write lock and marks the model
// dirty when fn succeeds.
func (l *Live) Edit(fn func(g *Graph) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := fn(l.graph); err != nil {
		return err
	}
	l.dirty = true
	l.gen++
	return nil
}
