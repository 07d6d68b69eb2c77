// Package repo represents one on-disk model repository: its working tree,
// checked-out branch and uncommitted changes.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/vcs"
)

// MetadataDir is the version-control directory inside a working tree.
const MetadataDir = ".git"

// DefaultRemote is used when no remote name is configured.
const DefaultRemote = "origin"

// Handle is an opened repository. It is immutable after Open; the engine
// serializes operations on the same working tree.
type Handle struct {
	root   string
	remote string
	fs     billy.Filesystem
	git    vcs.Primitives
	ignore *grafico.Matcher
}

// Options tune how a repository is opened.
type Options struct {
	Remote string
	Auth   transport.AuthMethod
	Ignore *grafico.Matcher
}

// Open opens the working tree at path.
func Open(path string, opts Options) (*Handle, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(filepath.Join(root, MetadataDir))
	if err != nil || !fi.IsDir() {
		return nil, &NotARepositoryError{Path: root}
	}
	r, err := gogit.PlainOpen(root)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, &NotARepositoryError{Path: root}
		}
		return nil, gitErr("open", root, err)
	}
	remote := opts.Remote
	if remote == "" {
		remote = DefaultRemote
	}
	return &Handle{
		root:   root,
		remote: remote,
		fs:     osfs.New(root),
		git:    vcs.NewGit(r, opts.Auth),
		ignore: opts.Ignore,
	}, nil
}

// Init creates a new repository at path and opens it. The repository is
// built in a sibling temporary directory and renamed into place, so other
// components never see it half initialised. path must not exist yet.
func Init(path, branch string, opts Options) (*Handle, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("init %q: %w", filepath.Base(root), os.ErrExist)
	}
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(root)+"-init-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp) // no-op after a successful rename

	if branch == "" {
		branch = "main"
	}
	_, err = gogit.PlainInitWithOptions(tmp, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	if err != nil {
		return nil, gitErr("init", root, err)
	}
	if err := os.Rename(tmp, root); err != nil {
		return nil, fmt.Errorf("init %s: %w", root, err)
	}
	log.Info().Str("repo", filepath.Base(root)).Msg("initialised model repository")
	return Open(root, opts)
}

// Root is the absolute path of the working tree.
func (h *Handle) Root() string { return h.root }

// Name is the directory name of the working tree, safe to show to users.
func (h *Handle) Name() string { return filepath.Base(h.root) }

// RemoteName is the remote used for branch tracking, fetch and push.
func (h *Handle) RemoteName() string { return h.remote }

// FS is the working tree as a billy filesystem.
func (h *Handle) FS() billy.Filesystem { return h.fs }

// VCS exposes the version-control primitives.
func (h *Handle) VCS() vcs.Primitives { return h.git }

// WithPrimitives returns a copy of h that calls p instead of go-git, for
// instrumentation and tests.
func (h *Handle) WithPrimitives(p vcs.Primitives) *Handle {
	c := *h
	c.git = p
	return &c
}

// Ignore returns the matcher for paths that are not model content.
func (h *Handle) Ignore() *grafico.Matcher { return h.ignore }

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached.
func (h *Handle) CurrentBranch() (string, error) {
	head, err := h.git.Head()
	if err != nil {
		return "", gitErr("read HEAD", h.root, err)
	}
	return head.Name, nil
}

// Status returns uncommitted changes relative to HEAD, without ignored
// paths.
func (h *Handle) Status() ([]vcs.FileStatus, error) {
	all, err := h.git.StatusDiff()
	if err != nil {
		return nil, gitErr("status", h.root, err)
	}
	out := all[:0]
	for _, s := range all {
		if h.ignore.Match(s.Path) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// IsDirty reports whether any non-ignored file differs from HEAD.
func (h *Handle) IsDirty() (bool, error) {
	status, err := h.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}
