package grafico

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/kurobon/modelrepo/internal/model"
)

type parsedRelationship struct {
	path string
	rel  *model.Relationship
}

// Import reads the Grafico files under fs into a new graph. Nodes are
// created first and relationship endpoints are resolved afterwards, so
// files may reference nodes that are read later.
func (c *Codec) Import(fs billy.Filesystem) (*model.Graph, error) {
	g, err := c.readModel(fs)
	if err != nil {
		return nil, err
	}

	// Pass 1: create every node.
	elementFiles, err := c.listFiles(fs, ElementsDir)
	if err != nil {
		return nil, err
	}
	root := g.Info().ID
	for _, p := range elementFiles {
		e, err := readElement(fs, p)
		if err != nil {
			return nil, err
		}
		if e.ID == root {
			return nil, &ParseError{Path: p, Reason: "identifier is used by the model"}
		}
		if err := g.AddElement(e); err != nil {
			return nil, &ParseError{Path: p, Reason: "duplicate identifier", Err: err}
		}
	}

	relationFiles, err := c.listFiles(fs, RelationsDir)
	if err != nil {
		return nil, err
	}
	var rels []parsedRelationship
	for _, p := range relationFiles {
		r, err := readRelationship(fs, p)
		if err != nil {
			return nil, err
		}
		if r.ID == root {
			return nil, &ParseError{Path: p, Reason: "identifier is used by the model"}
		}
		if err := g.AddRelationship(r); err != nil {
			return nil, &ParseError{Path: p, Reason: "duplicate identifier", Err: err}
		}
		rels = append(rels, parsedRelationship{path: p, rel: r})
	}

	// Pass 2: link.
	for _, pr := range rels {
		for _, ref := range []string{pr.rel.SourceID, pr.rel.TargetID} {
			if !g.Contains(ref) {
				return nil, &ReferenceError{Path: pr.path, ID: pr.rel.ID, Ref: ref}
			}
		}
	}

	els, rs := g.Len()
	log.Debug().Int("elements", els).Int("relationships", rs).Msg("grafico import finished")
	return g, nil
}

func (c *Codec) readModel(fs billy.Filesystem) (*model.Graph, error) {
	var doc modelDoc
	if err := decodeFile(fs, ModelFile, &doc); err != nil {
		return nil, err
	}
	if !model.ValidID(doc.ID) {
		return nil, &ParseError{Path: ModelFile, Reason: fmt.Sprintf("invalid model identifier %q", doc.ID)}
	}
	g := model.NewGraph(doc.ID, doc.Name)
	g.SetInfo(model.Info{ID: doc.ID, Name: doc.Name, Purpose: doc.Purpose, Properties: doc.Properties})
	return g, nil
}

func readElement(fs billy.Filesystem, p string) (*model.Element, error) {
	var doc elementDoc
	if err := decodeFile(fs, p, &doc); err != nil {
		return nil, err
	}
	if err := checkFileName(p, doc.Type, doc.ID); err != nil {
		return nil, err
	}
	if !model.IsElementType(doc.Type) {
		return nil, &ParseError{Path: p, Reason: fmt.Sprintf("unknown element type %q", doc.Type)}
	}
	return &model.Element{
		ID:            doc.ID,
		Type:          doc.Type,
		Name:          doc.Name,
		Documentation: doc.Documentation,
		Folder:        doc.Folder,
		Properties:    doc.Properties,
	}, nil
}

func readRelationship(fs billy.Filesystem, p string) (*model.Relationship, error) {
	var doc relationshipDoc
	if err := decodeFile(fs, p, &doc); err != nil {
		return nil, err
	}
	if err := checkFileName(p, doc.Type, doc.ID); err != nil {
		return nil, err
	}
	if !model.IsRelationshipType(doc.Type) {
		return nil, &ParseError{Path: p, Reason: fmt.Sprintf("unknown relationship type %q", doc.Type)}
	}
	if doc.Source == "" || doc.Target == "" {
		return nil, &ParseError{Path: p, Reason: "relationship without source or target"}
	}
	return &model.Relationship{
		ID:            doc.ID,
		Type:          doc.Type,
		Name:          doc.Name,
		Documentation: doc.Documentation,
		SourceID:      doc.Source,
		TargetID:      doc.Target,
		Properties:    doc.Properties,
	}, nil
}

func checkFileName(p, typ, id string) error {
	wantType, wantID, _ := splitFileName(path.Base(p))
	if typ != wantType || id != wantID {
		return &ParseError{Path: p, Reason: fmt.Sprintf("content (%s %s) does not match file name", typ, id)}
	}
	if !model.ValidID(id) {
		return &ParseError{Path: p, Reason: fmt.Sprintf("invalid identifier %q", id)}
	}
	return nil
}

// decodeFile reads a YAML document and checks its schema marker before
// decoding into out.
func decodeFile(fs billy.Filesystem, p string, out any) error {
	data, err := readFile(fs, filepath.FromSlash(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ParseError{Path: p, Reason: "file is missing", Err: err}
		}
		return &ParseError{Path: p, Reason: "cannot read file", Err: err}
	}

	var header struct {
		Schema int `yaml:"schema"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return &ParseError{Path: p, Reason: "corrupt file", Err: err}
	}
	switch {
	case header.Schema == 0:
		return &ParseError{Path: p, Reason: "missing schema version"}
	case header.Schema < 0:
		return &ParseError{Path: p, Reason: fmt.Sprintf("invalid schema version %d", header.Schema)}
	case header.Schema > SchemaVersion:
		return &ParseError{Path: p, Reason: fmt.Sprintf("unsupported schema version %d", header.Schema)}
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return &ParseError{Path: p, Reason: "corrupt file", Err: err}
	}
	return nil
}

// listFiles returns the Grafico files of dir, sorted, skipping ignored and
// foreign files.
func (c *Codec) listFiles(fs billy.Filesystem, dir string) ([]string, error) {
	infos, err := fs.ReadDir(filepath.FromSlash(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &ParseError{Path: dir, Reason: "cannot list directory", Err: err}
	}
	var files []string
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		p := path.Join(dir, fi.Name())
		if c.ignore.Match(p) {
			continue
		}
		if _, _, ok := splitFileName(fi.Name()); !ok {
			log.Debug().Str("path", p).Msg("skipping non-grafico file")
			continue
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}
