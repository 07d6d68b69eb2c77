// Package watch notices changes made to a working tree outside the engine,
// such as a merge run from a terminal, and announces them on the event bus.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/repo"
)

// DefaultDebounce collapses bursts such as a checkout into one event.
const DefaultDebounce = 300 * time.Millisecond

// Publisher receives the repository-changed notifications.
type Publisher interface {
	Publish(kind event.Kind, h *repo.Handle)
}

// Watcher watches one working tree recursively.
type Watcher struct {
	h        *repo.Handle
	pub      Publisher
	debounce time.Duration

	fsw     *fsnotify.Watcher
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the tree must be quiet before an event is
// published.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New starts watching the working tree of h.
func New(h *repo.Handle, pub Publisher, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		h:        h,
		pub:      pub,
		debounce: DefaultDebounce,
		fsw:      fsw,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(h.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.loop()
	log.Debug().Str("repo", h.Name()).Dur("debounce", w.debounce).Msg("watching working tree")
	return w, nil
}

// Close stops the watcher. Pending changes are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		w.wg.Wait()
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skip(p) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// skip reports paths whose changes are not working-tree changes.
func (w *Watcher) skip(p string) bool {
	rel, err := filepath.Rel(w.h.Root(), p)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == repo.MetadataDir || strings.HasPrefix(rel, repo.MetadataDir+"/") {
		return true
	}
	return w.h.Ignore().Match(rel)
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.skip(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						log.Warn().Err(err).Str("repo", w.h.Name()).Msg("cannot watch new directory")
					}
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			log.Debug().Str("repo", w.h.Name()).Msg("working tree changed on disk")
			w.pub.Publish(event.RepositoryChanged, w.h)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Error().Err(err).Str("repo", w.h.Name()).Msg("watcher error")
				continue
			}
			// Some events were lost; report a change to be safe.
			timer.Reset(w.debounce)
		}
	}
}
