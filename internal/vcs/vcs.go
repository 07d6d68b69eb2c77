// Package vcs is the narrow set of version-control primitives the engine
// needs, implemented over go-git.
package vcs

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5/plumbing"
)

// ErrRefNotFound is returned by ResolveRef for a reference that does not
// exist.
var ErrRefNotFound = plumbing.ErrReferenceNotFound

// Ref is a resolved branch reference.
type Ref struct {
	Name     string // short name, e.g. "main" or "feature/x"
	FullName string // e.g. "refs/heads/main"
	Hash     string // empty for an unborn branch
}

// Tracking is the upstream configuration of a local branch.
type Tracking struct {
	Remote string
	Merge  string // short name of the branch on the remote
}

// Author identifies who records a commit.
type Author struct {
	Name  string
	Email string
}

// FileStatus is the status of one path relative to HEAD, using git's
// two-letter porcelain codes.
type FileStatus struct {
	Path     string
	Staging  byte
	Worktree byte
}

// Untracked reports a path unknown to the index.
func (s FileStatus) Untracked() bool { return s.Staging == '?' }

// Deleted reports a path removed in the index or the working tree.
func (s FileStatus) Deleted() bool { return s.Staging == 'D' || s.Worktree == 'D' }

// Added reports a path that does not exist in HEAD.
func (s FileStatus) Added() bool { return s.Untracked() || s.Staging == 'A' }

// Staged reports a change recorded in the index.
func (s FileStatus) Staged() bool { return s.Staging != ' ' && s.Staging != '?' }

// Code returns the porcelain "XY" code.
func (s FileStatus) Code() string { return string([]byte{s.Staging, s.Worktree}) }

// Primitives is the version-control capability the engine depends on.
type Primitives interface {
	Head() (Ref, error)
	ListLocalBranches() ([]Ref, error)
	ListRemoteBranches(remote string) ([]Ref, error)
	TrackingConfig() (map[string]Tracking, error)
	ResolveRef(fullName string) (string, error)
	StageAll() error
	Commit(message string, author Author) (string, error)
	Checkout(branch string, force bool) error
	CreateTrackingBranch(name, remote string) error
	DeleteBranch(name string) error
	Fetch(ctx context.Context, remote string) error
	Push(ctx context.Context, remote, branch string) error
	StatusDiff() ([]FileStatus, error)
	CountDivergence(localHash, upstreamHash string) (ahead, behind int, err error)
}

// IsNotFound reports whether err means a reference does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, plumbing.ErrReferenceNotFound)
}
