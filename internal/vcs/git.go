package vcs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog/log"
)

// Git implements Primitives over a go-git repository with a working tree.
type Git struct {
	repo *gogit.Repository
	auth transport.AuthMethod
}

// NewGit wraps repo. auth may be nil for anonymous or local remotes.
func NewGit(repo *gogit.Repository, auth transport.AuthMethod) *Git {
	return &Git{repo: repo, auth: auth}
}

// Repository exposes the underlying go-git repository.
func (g *Git) Repository() *gogit.Repository { return g.repo }

func (g *Git) Head() (Ref, error) {
	ref, err := g.repo.Head()
	if err == nil {
		if ref.Name().IsBranch() {
			return Ref{Name: ref.Name().Short(), FullName: ref.Name().String(), Hash: ref.Hash().String()}, nil
		}
		// detached
		return Ref{FullName: plumbing.HEAD.String(), Hash: ref.Hash().String()}, nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Ref{}, err
	}
	// Unborn branch: HEAD is a symbolic ref to a branch without commits.
	sym, serr := g.repo.Storer.Reference(plumbing.HEAD)
	if serr != nil {
		return Ref{}, serr
	}
	target := sym.Target()
	return Ref{Name: target.Short(), FullName: target.String()}, nil
}

func (g *Git) ListLocalBranches() ([]Ref, error) {
	iter, err := g.repo.Branches()
	if err != nil {
		return nil, err
	}
	var refs []Ref
	err = iter.ForEach(func(r *plumbing.Reference) error {
		refs = append(refs, Ref{Name: r.Name().Short(), FullName: r.Name().String(), Hash: r.Hash().String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRefs(refs)
	return refs, nil
}

// ListRemoteBranches returns the remote-tracking refs of remote with the
// remote prefix stripped from Name. The remote HEAD symref is skipped.
func (g *Git) ListRemoteBranches(remote string) ([]Ref, error) {
	iter, err := g.repo.References()
	if err != nil {
		return nil, err
	}
	prefix := "refs/remotes/" + remote + "/"
	var refs []Ref
	err = iter.ForEach(func(r *plumbing.Reference) error {
		full := r.Name().String()
		if !r.Name().IsRemote() || !strings.HasPrefix(full, prefix) {
			return nil
		}
		short := strings.TrimPrefix(full, prefix)
		if short == "HEAD" || r.Type() != plumbing.HashReference {
			return nil
		}
		refs = append(refs, Ref{Name: short, FullName: full, Hash: r.Hash().String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRefs(refs)
	return refs, nil
}

func (g *Git) TrackingConfig() (map[string]Tracking, error) {
	cfg, err := g.repo.Config()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Tracking, len(cfg.Branches))
	for name, b := range cfg.Branches {
		if b.Remote == "" || b.Merge == "" {
			continue
		}
		out[name] = Tracking{Remote: b.Remote, Merge: b.Merge.Short()}
	}
	return out, nil
}

func (g *Git) ResolveRef(fullName string) (string, error) {
	ref, err := g.repo.Reference(plumbing.ReferenceName(fullName), true)
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}

// StageAll records every working-tree change in the index, deletions
// included.
func (g *Git) StageAll() error {
	w, err := g.repo.Worktree()
	if err != nil {
		return err
	}
	if err := w.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return err
	}
	status, err := w.Status()
	if err != nil {
		return err
	}
	for path, s := range status {
		if s.Worktree == gogit.Deleted {
			if _, err := w.Remove(path); err != nil {
				return fmt.Errorf("stage removal of %s: %w", path, err)
			}
		}
	}
	return nil
}

func (g *Git) Commit(message string, author Author) (string, error) {
	w, err := g.repo.Worktree()
	if err != nil {
		return "", err
	}
	sig := &object.Signature{Name: author.Name, Email: author.Email, When: time.Now()}
	hash, err := w.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// Checkout switches the working tree to the local branch. With force,
// uncommitted changes to tracked files are discarded.
func (g *Git) Checkout(branch string, force bool) error {
	w, err := g.repo.Worktree()
	if err != nil {
		return err
	}
	return w.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Force:  force,
	})
}

// CreateTrackingBranch creates a local branch at refs/remotes/<remote>/<name>
// and configures it to track that remote branch.
func (g *Git) CreateTrackingBranch(name, remote string) error {
	remoteRef, err := g.repo.Reference(plumbing.NewRemoteReferenceName(remote, name), true)
	if err != nil {
		return err
	}
	local := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), remoteRef.Hash())
	if err := g.repo.Storer.SetReference(local); err != nil {
		return err
	}
	return g.setUpstream(name, remote)
}

// DeleteBranch removes the local branch and its upstream configuration.
func (g *Git) DeleteBranch(name string) error {
	if err := g.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return err
	}
	err := g.repo.DeleteBranch(name)
	if errors.Is(err, gogit.ErrBranchNotFound) {
		return nil
	}
	return err
}

func (g *Git) setUpstream(name, remote string) error {
	cfg, err := g.repo.Config()
	if err != nil {
		return err
	}
	if b, ok := cfg.Branches[name]; ok && b.Remote != "" {
		return nil
	}
	cfg.Branches[name] = &config.Branch{
		Name:   name,
		Remote: remote,
		Merge:  plumbing.NewBranchReferenceName(name),
	}
	return g.repo.SetConfig(cfg)
}

// Fetch updates remote-tracking refs and prunes those deleted on the remote.
func (g *Git) Fetch(ctx context.Context, remote string) error {
	err := g.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remote,
		Auth:       g.auth,
		Prune:      true,
	})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		log.Debug().Str("remote", remote).Msg("fetch: already up to date")
		return nil
	}
	return err
}

// Push publishes branch to the same name on remote and records the remote
// as its upstream.
func (g *Git) Push(ctx context.Context, remote, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := g.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
		Auth:       g.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return err
	}
	return g.setUpstream(branch, remote)
}

func (g *Git) StatusDiff() ([]FileStatus, error) {
	w, err := g.repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := w.Status()
	if err != nil {
		return nil, err
	}
	var out []FileStatus
	for path, s := range status {
		if s.Staging == gogit.Unmodified && s.Worktree == gogit.Unmodified {
			continue
		}
		out = append(out, FileStatus{
			Path:     path,
			Staging:  statusCodeToChar(s.Staging),
			Worktree: statusCodeToChar(s.Worktree),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// CountDivergence counts commits reachable from local but not upstream
// (ahead) and the reverse (behind).
func (g *Git) CountDivergence(localHash, upstreamHash string) (ahead, behind int, err error) {
	if localHash == upstreamHash {
		return 0, 0, nil
	}
	fromLocal, err := g.ancestors(plumbing.NewHash(localHash))
	if err != nil {
		return 0, 0, err
	}
	fromUpstream, err := g.ancestors(plumbing.NewHash(upstreamHash))
	if err != nil {
		return 0, 0, err
	}
	for h := range fromLocal {
		if !fromUpstream[h] {
			ahead++
		}
	}
	for h := range fromUpstream {
		if !fromLocal[h] {
			behind++
		}
	}
	return ahead, behind, nil
}

// ancestors walks the history breadth first, start included.
func (g *Git) ancestors(start plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		c, err := g.repo.CommitObject(current)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", current, err)
		}
		seen[current] = true
		queue = append(queue, c.ParentHashes...)
	}
	return seen, nil
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
}

func statusCodeToChar(c gogit.StatusCode) byte {
	switch c {
	case gogit.Unmodified:
		return ' '
	case gogit.Modified:
		return 'M'
	case gogit.Added:
		return 'A'
	case gogit.Deleted:
		return 'D'
	case gogit.Renamed:
		return 'R'
	case gogit.Copied:
		return 'C'
	case gogit.UpdatedButUnmerged:
		return 'U'
	case gogit.Untracked:
		return '?'
	default:
		return '-'
	}
}
