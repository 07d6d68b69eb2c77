package repo

import (
	"fmt"
	"path/filepath"
)

// NotARepositoryError is returned by Open for a directory without version
// control metadata.
type NotARepositoryError struct {
	Path string
}

func (e *NotARepositoryError) Error() string {
	return fmt.Sprintf("not a model repository: %s", e.Path)
}

// GitAccessError wraps a failure of the underlying version-control library.
// Op names the operation; Repo is the working tree root.
type GitAccessError struct {
	Op   string
	Repo string
	Err  error
}

func (e *GitAccessError) Error() string {
	return fmt.Sprintf("%s on repository %q: %v", e.Op, filepath.Base(e.Repo), e.Err)
}

func (e *GitAccessError) Unwrap() error { return e.Err }

// gitErr wraps a non-nil err in a GitAccessError.
func gitErr(op, root string, err error) error {
	if err == nil {
		return nil
	}
	return &GitAccessError{Op: op, Repo: root, Err: err}
}

// Wrap reports a version-control failure of op on h as a GitAccessError.
// It returns nil for a nil err.
func (h *Handle) Wrap(op string, err error) error {
	return gitErr(op, h.root, err)
}
