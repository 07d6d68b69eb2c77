package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Sentinel errors for engine operations.
var (
	// ErrNothingToCommit is returned by Commit when the working tree matches
	// HEAD.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrDetachedHead is returned by operations that need a checked-out
	// branch.
	ErrDetachedHead = errors.New("HEAD is not on a branch")
)

// UnsavedChangesConflictError is returned when reloading the model from disk
// would discard edits that were never exported.
type UnsavedChangesConflictError struct {
	Repo string
}

func (e *UnsavedChangesConflictError) Error() string {
	return fmt.Sprintf("model of repository %q has unsaved changes", filepath.Base(e.Repo))
}

// DirtyWorkingTreeError is returned by SwitchBranch when uncommitted work
// would be lost.
type DirtyWorkingTreeError struct {
	Repo   string
	Branch string
	// Paths are the uncommitted files, relative to the working tree.
	Paths []string
	// UnsavedModel is set when the live model has edits not yet exported.
	UnsavedModel bool
}

func (e *DirtyWorkingTreeError) Error() string {
	var what []string
	if len(e.Paths) > 0 {
		what = append(what, fmt.Sprintf("%d uncommitted file(s)", len(e.Paths)))
	}
	if e.UnsavedModel {
		what = append(what, "unsaved model changes")
	}
	return fmt.Sprintf("cannot switch repository %q to %s: %s",
		filepath.Base(e.Repo), e.Branch, strings.Join(what, " and "))
}

// UnknownBranchError is returned by SwitchBranch for a branch that is neither
// local nor available on the remote.
type UnknownBranchError struct {
	Name string
}

func (e *UnknownBranchError) Error() string {
	return fmt.Sprintf("branch %s does not exist", e.Name)
}
