package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/config"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/model"
	"github.com/kurobon/modelrepo/internal/repo"
	"github.com/kurobon/modelrepo/internal/watch"
)

// openRepo is a repository the server has opened, with the live model the
// server holds for it.
type openRepo struct {
	handle  *repo.Handle
	host    *model.Live
	watcher *watch.Watcher
}

// Workspace tracks the repositories under the user repository folder.
type Workspace struct {
	cfg   *config.Config
	bus   *event.Bus
	watch bool

	mu    sync.Mutex
	repos map[string]*openRepo
}

// NewWorkspace creates a workspace over cfg.UserRepositoryFolder(). With
// watchTrees each opened working tree is watched for outside changes.
func NewWorkspace(cfg *config.Config, bus *event.Bus, watchTrees bool) *Workspace {
	return &Workspace{cfg: cfg, bus: bus, watch: watchTrees, repos: make(map[string]*openRepo)}
}

// validName accepts a single path element.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// List returns the names of the repositories in the folder.
func (ws *Workspace) List() ([]string, error) {
	dir := ws.cfg.UserRepositoryFolder()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if fi, err := os.Stat(filepath.Join(dir, e.Name(), repo.MetadataDir)); err == nil && fi.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Get opens the named repository on first use. The live model starts as
// the model committed in the working tree, or empty for a new repository.
func (ws *Workspace) Get(name string) (*openRepo, error) {
	if !validName(name) {
		return nil, badRequest(fmt.Sprintf("invalid repository name %q", name))
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if r, ok := ws.repos[name]; ok {
		return r, nil
	}
	h, err := repo.Open(filepath.Join(ws.cfg.UserRepositoryFolder(), name), ws.cfg.RepoOptions())
	if err != nil {
		return nil, err
	}
	return ws.add(name, h)
}

// Create initialises a new repository with an empty model.
func (ws *Workspace) Create(name, modelName string) (*openRepo, error) {
	if !validName(name) {
		return nil, badRequest(fmt.Sprintf("invalid repository name %q", name))
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	h, err := repo.Init(filepath.Join(ws.cfg.UserRepositoryFolder(), name), "", ws.cfg.RepoOptions())
	if err != nil {
		return nil, err
	}
	r, err := ws.add(name, h)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = name
	}
	r.host.ReplaceGraph(model.NewGraph(model.NewID(), modelName))
	r.host.MarkDirty(true)
	return r, nil
}

func (ws *Workspace) add(name string, h *repo.Handle) (*openRepo, error) {
	g, err := grafico.New(grafico.WithIgnore(h.Ignore())).Import(h.FS())
	if err != nil {
		if !grafico.IsNoModel(err) {
			return nil, err
		}
		g = nil
	}
	r := &openRepo{handle: h, host: model.NewLive(g)}
	if ws.watch {
		w, err := watch.New(h, ws.bus, watch.WithDebounce(time.Duration(ws.cfg.WatchDebounce)))
		if err != nil {
			log.Warn().Err(err).Str("repo", name).Msg("cannot watch working tree")
		} else {
			r.watcher = w
		}
	}
	ws.repos[name] = r
	ws.bus.Publish(event.RepositoryAdded, h)
	return r, nil
}

// Remove forgets the named repository without touching it on disk.
func (ws *Workspace) Remove(name string) bool {
	ws.mu.Lock()
	r, ok := ws.repos[name]
	delete(ws.repos, name)
	ws.mu.Unlock()
	if !ok {
		return false
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	ws.bus.Publish(event.RepositoryRemoved, r.handle)
	return true
}

// Close stops all watchers.
func (ws *Workspace) Close() {
	ws.mu.Lock()
	names := make([]string, 0, len(ws.repos))
	for name := range ws.repos {
		names = append(names, name)
	}
	ws.mu.Unlock()
	for _, name := range names {
		ws.Remove(name)
	}
}
