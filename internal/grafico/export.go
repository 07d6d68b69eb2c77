// Package grafico converts a model graph to and from the Grafico layout: one
// YAML file per element or relationship, named after its type and
// identifier, so that the model diffs and merges well under version control.
package grafico

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/model"
)

// Codec reads and writes Grafico files. It holds no graph state between
// calls and never touches version control.
type Codec struct {
	ignore *Matcher
}

// Option configures a Codec.
type Option func(*Codec)

// WithIgnore skips files matched by m during import and stale-file cleanup.
func WithIgnore(m *Matcher) Option {
	return func(c *Codec) { c.ignore = m }
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pendingFile struct {
	path string
	data []byte
}

// Export writes g into fs. Files whose content is unchanged are not
// rewritten, and Grafico files for nodes no longer in g are removed. The
// returned ChangeSet lists what was written or removed.
func (c *Codec) Export(g model.Traversable, fs billy.Filesystem) (ChangeSet, error) {
	files, err := c.render(g)
	if err != nil {
		return nil, err
	}

	var changes []Change
	keep := make(map[string]bool, len(files))
	for _, f := range files {
		keep[f.path] = true
		kind, err := writeIfChanged(fs, f.path, f.data)
		if err != nil {
			return nil, fmt.Errorf("grafico: write %s: %w", f.path, err)
		}
		if kind != 0 {
			changes = append(changes, Change{Path: f.path, Kind: kind})
		}
	}

	for _, dir := range []string{ElementsDir, RelationsDir} {
		stale, err := c.staleFiles(fs, dir, keep)
		if err != nil {
			return nil, err
		}
		for _, p := range stale {
			if err := fs.Remove(filepath.FromSlash(p)); err != nil {
				return nil, fmt.Errorf("grafico: remove %s: %w", p, err)
			}
			changes = append(changes, Change{Path: p, Kind: Deleted})
		}
	}

	cs := NewChangeSet(changes...)
	log.Debug().Int("changes", len(cs)).Msg("grafico export finished")
	return cs, nil
}

// Validate reports the SerializationError Export would fail with for g,
// without writing anything.
func Validate(g model.Traversable) error {
	_, err := New().render(g)
	return err
}

// render validates the whole graph and encodes every node before anything is
// written, so a SerializationError leaves the target untouched.
func (c *Codec) render(g model.Traversable) ([]pendingFile, error) {
	info := g.Info()
	if !model.ValidID(info.ID) {
		return nil, &SerializationError{ID: info.ID, Type: "model", Reason: "invalid model identifier"}
	}

	// The model identifier is reserved but is not a node, so it is never a
	// valid endpoint.
	ids := map[string]bool{info.ID: true}
	var files []pendingFile

	data, err := encode(modelDoc{
		Schema:     SchemaVersion,
		ID:         info.ID,
		Name:       info.Name,
		Purpose:    info.Purpose,
		Properties: info.Properties,
	})
	if err != nil {
		return nil, &SerializationError{ID: info.ID, Type: "model", Reason: err.Error()}
	}
	files = append(files, pendingFile{path: ModelFile, data: data})

	err = g.ForEachElement(func(e *model.Element) error {
		if err := checkNode(ids, e.ID, e.Type, model.IsElementType(e.Type)); err != nil {
			return err
		}
		data, err := encode(elementDoc{
			Schema:        SchemaVersion,
			ID:            e.ID,
			Type:          e.Type,
			Name:          e.Name,
			Documentation: e.Documentation,
			Folder:        e.Folder,
			Properties:    e.Properties,
		})
		if err != nil {
			return &SerializationError{ID: e.ID, Type: e.Type, Reason: err.Error()}
		}
		files = append(files, pendingFile{path: ElementPath(e.Type, e.ID), data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rels []*model.Relationship
	err = g.ForEachRelationship(func(r *model.Relationship) error {
		if err := checkNode(ids, r.ID, r.Type, model.IsRelationshipType(r.Type)); err != nil {
			return err
		}
		rels = append(rels, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Endpoints are checked once every identifier is known; cycles between
	// relationships are fine since only identifiers are written.
	for _, r := range rels {
		for _, ref := range []string{r.SourceID, r.TargetID} {
			if ref == "" || ref == info.ID || !ids[ref] {
				return nil, &SerializationError{ID: r.ID, Type: r.Type, Reason: fmt.Sprintf("endpoint %q is not in the model", ref)}
			}
		}
		data, err := encode(relationshipDoc{
			Schema:        SchemaVersion,
			ID:            r.ID,
			Type:          r.Type,
			Name:          r.Name,
			Documentation: r.Documentation,
			Source:        r.SourceID,
			Target:        r.TargetID,
			Properties:    r.Properties,
		})
		if err != nil {
			return nil, &SerializationError{ID: r.ID, Type: r.Type, Reason: err.Error()}
		}
		files = append(files, pendingFile{path: RelationshipPath(r.Type, r.ID), data: data})
	}

	return files, nil
}

func checkNode(ids map[string]bool, id, typ string, known bool) error {
	switch {
	case !model.ValidID(id):
		return &SerializationError{ID: id, Type: typ, Reason: "identifier is not usable as a file name"}
	case !known:
		return &SerializationError{ID: id, Type: typ, Reason: "unknown type"}
	case ids[id]:
		return &SerializationError{ID: id, Type: typ, Reason: "identifier used more than once"}
	}
	ids[id] = true
	return nil
}

// writeIfChanged returns Added, Modified or 0 when the file already holds
// data.
func writeIfChanged(fs billy.Filesystem, p string, data []byte) (ChangeKind, error) {
	name := filepath.FromSlash(p)
	existing, err := readFile(fs, name)
	kind := Modified
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = Added
	case err != nil:
		return 0, err
	case bytes.Equal(existing, data):
		return 0, nil
	}
	if err := fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return 0, err
	}
	if err := util.WriteFile(fs, name, data, 0o644); err != nil {
		return 0, err
	}
	return kind, nil
}

func (c *Codec) staleFiles(fs billy.Filesystem, dir string, keep map[string]bool) ([]string, error) {
	infos, err := fs.ReadDir(filepath.FromSlash(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grafico: list %s: %w", dir, err)
	}
	var stale []string
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		p := path.Join(dir, fi.Name())
		if _, _, ok := splitFileName(fi.Name()); !ok || keep[p] || c.ignore.Match(p) {
			continue
		}
		stale = append(stale, p)
	}
	return stale, nil
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
