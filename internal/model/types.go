// Package model holds the in-memory model graph that the repository engine
// serializes: elements, relationships between them, and the model root.
package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Property is a key/value pair attached to the model, an element or a
// relationship. Order is significant.
type Property struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Element is a single node of the model graph.
type Element struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Name          string     `json:"name,omitempty"`
	Documentation string     `json:"documentation,omitempty"`
	Folder        string     `json:"folder,omitempty"` // user folder path inside the model tree, e.g. "Business/Actors"
	Properties    []Property `json:"properties,omitempty"`
}

// Relationship connects two nodes by identifier. Source and Target may name
// an element or another relationship, so the graph can contain cycles.
type Relationship struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Name          string     `json:"name,omitempty"`
	Documentation string     `json:"documentation,omitempty"`
	SourceID      string     `json:"source"`
	TargetID      string     `json:"target"`
	Properties    []Property `json:"properties,omitempty"`
}

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidID reports whether id can be used verbatim in a file name.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// NewID returns a fresh identifier in the "id-<hex>" form.
func NewID() string {
	return "id-" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func cloneProperties(props []Property) []Property {
	if props == nil {
		return nil
	}
	out := make([]Property, len(props))
	copy(out, props)
	return out
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	c := *e
	c.Properties = cloneProperties(e.Properties)
	return &c
}

// Clone returns a deep copy of r.
func (r *Relationship) Clone() *Relationship {
	c := *r
	c.Properties = cloneProperties(r.Properties)
	return &c
}
