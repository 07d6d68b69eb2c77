package model

import (
	"errors"
	"fmt"
)

// Document is the flat form of a graph used by the HTTP API.
type Document struct {
	Info
	Elements      []*Element      `json:"elements"`
	Relationships []*Relationship `json:"relationships"`
}

// ToDocument flattens g in identifier order.
func ToDocument(g Traversable) Document {
	d := Document{Info: g.Info(), Elements: []*Element{}, Relationships: []*Relationship{}}
	_ = g.ForEachElement(func(e *Element) error {
		d.Elements = append(d.Elements, e.Clone())
		return nil
	})
	_ = g.ForEachRelationship(func(r *Relationship) error {
		d.Relationships = append(d.Relationships, r.Clone())
		return nil
	})
	return d
}

// Graph builds a graph from d. Identifiers must be unique and every
// relationship endpoint must exist in d.
func (d Document) Graph() (*Graph, error) {
	g := NewGraph(d.ID, d.Name)
	g.SetInfo(d.Info)
	for _, e := range d.Elements {
		if e == nil {
			return nil, errors.New("null element")
		}
		if err := g.AddElement(e.Clone()); err != nil {
			return nil, err
		}
	}
	for _, r := range d.Relationships {
		if r == nil {
			return nil, errors.New("null relationship")
		}
		if err := g.AddRelationship(r.Clone()); err != nil {
			return nil, err
		}
	}
	for _, r := range d.Relationships {
		for _, ref := range []string{r.SourceID, r.TargetID} {
			if !g.Contains(ref) {
				return nil, fmt.Errorf("relationship %s: unknown endpoint %q", r.ID, ref)
			}
		}
	}
	return g, nil
}
