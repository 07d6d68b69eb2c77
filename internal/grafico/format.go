package grafico

import (
	"bytes"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kurobon/modelrepo/internal/model"
)

// SchemaVersion is written into every file. Files with a newer version are
// rejected on import; unknown fields of the current version are ignored.
const SchemaVersion = 1

// Layout of a working tree, slash separated and relative to its root.
const (
	ModelDir       = "model"
	ModelFile      = "model/model.yaml"
	ElementsDir    = "model/elements"
	RelationsDir   = "model/relations"
	fileExt        = ".yaml"
	typeIDSplitter = "_"
)

type modelDoc struct {
	Schema     int              `yaml:"schema"`
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name"`
	Purpose    string           `yaml:"purpose,omitempty"`
	Properties []model.Property `yaml:"properties,omitempty"`
}

type elementDoc struct {
	Schema        int              `yaml:"schema"`
	ID            string           `yaml:"id"`
	Type          string           `yaml:"type"`
	Name          string           `yaml:"name,omitempty"`
	Documentation string           `yaml:"documentation,omitempty"`
	Folder        string           `yaml:"folder,omitempty"`
	Properties    []model.Property `yaml:"properties,omitempty"`
}

type relationshipDoc struct {
	Schema        int              `yaml:"schema"`
	ID            string           `yaml:"id"`
	Type          string           `yaml:"type"`
	Name          string           `yaml:"name,omitempty"`
	Documentation string           `yaml:"documentation,omitempty"`
	Source        string           `yaml:"source"`
	Target        string           `yaml:"target"`
	Properties    []model.Property `yaml:"properties,omitempty"`
}

// ElementPath returns the file holding the element with the given type and
// identifier.
func ElementPath(typ, id string) string {
	return path.Join(ElementsDir, typ+typeIDSplitter+id+fileExt)
}

// RelationshipPath returns the file holding the relationship with the given
// type and identifier.
func RelationshipPath(typ, id string) string {
	return path.Join(RelationsDir, typ+typeIDSplitter+id+fileExt)
}

// splitFileName extracts type and identifier from "<Type>_<id>.yaml". Types
// never contain the separator, identifiers may.
func splitFileName(name string) (typ, id string, ok bool) {
	if !strings.HasSuffix(name, fileExt) {
		return "", "", false
	}
	base := strings.TrimSuffix(name, fileExt)
	typ, id, ok = strings.Cut(base, typeIDSplitter)
	if !ok || typ == "" || id == "" {
		return "", "", false
	}
	return typ, id, true
}

// IsGraficoPath reports whether p belongs to the serialized model.
func IsGraficoPath(p string) bool {
	return p == ModelFile || strings.HasPrefix(p, ModelDir+"/")
}

func encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
