package grafico

import "sort"

// ChangeKind classifies one entry of a ChangeSet.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON payloads.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Change is one file of a ChangeSet. Path is slash separated and relative to
// the working tree root.
type Change struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

// ChangeSet lists changed files sorted by path.
type ChangeSet []Change

// NewChangeSet sorts changes by path, keeping the last kind recorded for a
// path.
func NewChangeSet(changes ...Change) ChangeSet {
	byPath := make(map[string]ChangeKind, len(changes))
	for _, c := range changes {
		byPath[c.Path] = c.Kind
	}
	cs := make(ChangeSet, 0, len(byPath))
	for p, k := range byPath {
		cs = append(cs, Change{Path: p, Kind: k})
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Path < cs[j].Path })
	return cs
}

// Empty reports whether nothing changed.
func (cs ChangeSet) Empty() bool { return len(cs) == 0 }

// Paths returns the changed paths in order.
func (cs ChangeSet) Paths() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Path
	}
	return out
}

// Count returns how many entries have the given kind.
func (cs ChangeSet) Count(kind ChangeKind) int {
	n := 0
	for _, c := range cs {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
