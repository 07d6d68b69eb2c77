package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateID is returned when an identifier is already used by another
// element or relationship of the same graph.
var ErrDuplicateID = errors.New("duplicate identifier")

// Traversable is the read capability the codec needs from a model graph.
type Traversable interface {
	Info() Info
	ForEachElement(fn func(*Element) error) error
	ForEachRelationship(fn func(*Relationship) error) error
}

// Info describes the model root.
type Info struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Purpose    string     `json:"purpose,omitempty"`
	Properties []Property `json:"properties,omitempty"`
}

// Graph is a model graph. It is not safe for concurrent mutation; the live
// copy owned by the host is guarded by Live.
type Graph struct {
	info          Info
	elements      map[string]*Element
	relationships map[string]*Relationship
}

// NewGraph creates an empty graph with the given root identity.
func NewGraph(id, name string) *Graph {
	return &Graph{
		info:          Info{ID: id, Name: name},
		elements:      make(map[string]*Element),
		relationships: make(map[string]*Relationship),
	}
}

// Info returns the model root.
func (g *Graph) Info() Info {
	info := g.info
	info.Properties = cloneProperties(g.info.Properties)
	return info
}

// SetInfo replaces the model root description. The identifier is kept when
// info.ID is empty.
func (g *Graph) SetInfo(info Info) {
	if info.ID == "" {
		info.ID = g.info.ID
	}
	info.Properties = cloneProperties(info.Properties)
	g.info = info
}

// AddElement inserts e. The identifier must not be in use.
func (g *Graph) AddElement(e *Element) error {
	if g.has(e.ID) {
		return fmt.Errorf("element %s: %w", e.ID, ErrDuplicateID)
	}
	g.elements[e.ID] = e
	return nil
}

// AddRelationship inserts r. Endpoints are not checked here; a relationship
// may be added before the nodes it references.
func (g *Graph) AddRelationship(r *Relationship) error {
	if g.has(r.ID) {
		return fmt.Errorf("relationship %s: %w", r.ID, ErrDuplicateID)
	}
	g.relationships[r.ID] = r
	return nil
}

// RemoveElement deletes the element and every relationship attached to it.
func (g *Graph) RemoveElement(id string) {
	if _, ok := g.elements[id]; !ok {
		return
	}
	delete(g.elements, id)
	g.removeAttached(id)
}

// RemoveRelationship deletes the relationship and every relationship that
// references it.
func (g *Graph) RemoveRelationship(id string) {
	if _, ok := g.relationships[id]; !ok {
		return
	}
	delete(g.relationships, id)
	g.removeAttached(id)
}

func (g *Graph) removeAttached(id string) {
	for rid, r := range g.relationships {
		if r.SourceID == id || r.TargetID == id {
			g.RemoveRelationship(rid)
		}
	}
}

func (g *Graph) has(id string) bool {
	_, e := g.elements[id]
	_, r := g.relationships[id]
	return e || r
}

// Element returns the element with the given identifier.
func (g *Graph) Element(id string) (*Element, bool) {
	e, ok := g.elements[id]
	return e, ok
}

// Relationship returns the relationship with the given identifier.
func (g *Graph) Relationship(id string) (*Relationship, bool) {
	r, ok := g.relationships[id]
	return r, ok
}

// Contains reports whether id names an element or a relationship.
func (g *Graph) Contains(id string) bool {
	return g.has(id)
}

// Len returns the number of elements and relationships.
func (g *Graph) Len() (elements, relationships int) {
	return len(g.elements), len(g.relationships)
}

// ForEachElement visits elements in ascending identifier order and stops at
// the first error.
func (g *Graph) ForEachElement(fn func(*Element) error) error {
	for _, id := range sortedKeys(g.elements) {
		if err := fn(g.elements[id]); err != nil {
			return err
		}
	}
	return nil
}

// ForEachRelationship visits relationships in ascending identifier order and
// stops at the first error.
func (g *Graph) ForEachRelationship(fn func(*Relationship) error) error {
	for _, id := range sortedKeys(g.relationships) {
		if err := fn(g.relationships[id]); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := NewGraph(g.info.ID, g.info.Name)
	c.SetInfo(g.info)
	for id, e := range g.elements {
		c.elements[id] = e.Clone()
	}
	for id, r := range g.relationships {
		c.relationships[id] = r.Clone()
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
