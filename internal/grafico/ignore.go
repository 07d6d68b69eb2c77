package grafico

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// Matcher filters working-tree paths the engine must not treat as model
// content, such as editor backups or lock files. A nil Matcher matches
// nothing.
type Matcher struct {
	gi *ignore.GitIgnore
}

// NewMatcher compiles gitignore-style patterns. It returns nil when there are
// no patterns.
func NewMatcher(patterns []string) *Matcher {
	if len(patterns) == 0 {
		return nil
	}
	return &Matcher{gi: ignore.CompileIgnoreLines(patterns...)}
}

// Match reports whether the slash or OS separated path p is ignored.
func (m *Matcher) Match(p string) bool {
	if m == nil || m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(filepath.ToSlash(p))
}
