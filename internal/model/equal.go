package model

import "slices"

// Equivalent reports whether a and b describe the same model: the same root,
// the same elements and relationships keyed by identifier, and the same
// field values. Property order is significant; node iteration order is not.
func Equivalent(a, b *Graph) bool {
	if a == nil || b == nil {
		return a == b
	}
	ai, bi := a.info, b.info
	if ai.ID != bi.ID || ai.Name != bi.Name || ai.Purpose != bi.Purpose {
		return false
	}
	if !slices.Equal(ai.Properties, bi.Properties) {
		return false
	}
	if len(a.elements) != len(b.elements) || len(a.relationships) != len(b.relationships) {
		return false
	}
	for id, ea := range a.elements {
		eb, ok := b.elements[id]
		if !ok || !elementsEqual(ea, eb) {
			return false
		}
	}
	for id, ra := range a.relationships {
		rb, ok := b.relationships[id]
		if !ok || !relationshipsEqual(ra, rb) {
			return false
		}
	}
	return true
}

func elementsEqual(a, b *Element) bool {
	return a.ID == b.ID &&
		a.Type == b.Type &&
		a.Name == b.Name &&
		a.Documentation == b.Documentation &&
		a.Folder == b.Folder &&
		slices.Equal(a.Properties, b.Properties)
}

func relationshipsEqual(a, b *Relationship) bool {
	return a.ID == b.ID &&
		a.Type == b.Type &&
		a.Name == b.Name &&
		a.Documentation == b.Documentation &&
		a.SourceID == b.SourceID &&
		a.TargetID == b.TargetID &&
		slices.Equal(a.Properties, b.Properties)
}
