package branch

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/vcs"
)

// Repository is what the tracker needs from an opened repository;
// *repo.Handle implements it.
type Repository interface {
	Name() string
	RemoteName() string
	VCS() vcs.Primitives
	Wrap(op string, err error) error
}

// Tracker computes branch status. The zero value is ready to use and holds
// no state between calls.
type Tracker struct{}

// ComputeStatus enumerates the branches of r against its configured remote.
// Version-control failures come back as *repo.GitAccessError.
func (Tracker) ComputeStatus(r Repository) (*Status, error) {
	git := r.VCS()
	remote := r.RemoteName()

	head, err := git.Head()
	if err != nil {
		return nil, r.Wrap("read HEAD", err)
	}
	locals, err := git.ListLocalBranches()
	if err != nil {
		return nil, r.Wrap("list local branches", err)
	}
	remotes, err := git.ListRemoteBranches(remote)
	if err != nil {
		return nil, r.Wrap("list remote branches", err)
	}
	tracking, err := git.TrackingConfig()
	if err != nil {
		return nil, r.Wrap("read branch config", err)
	}

	onRemote := make(map[string]bool, len(remotes))
	st := &Status{}
	for _, ref := range remotes {
		onRemote[ref.Name] = true
		st.Remote = append(st.Remote, NewInfo(ref.Name, ref.FullName, ref.Hash, Available))
	}

	classify := func(name string) (Remote, error) {
		if onRemote[name] {
			return Available, nil
		}
		tr, ok := tracking[name]
		if !ok {
			return Unpublished, nil
		}
		_, err := git.ResolveRef(plumbing.NewRemoteReferenceName(tr.Remote, tr.Merge).String())
		switch {
		case err == nil:
			return Unpublished, nil
		case vcs.IsNotFound(err):
			return Deleted, nil
		default:
			return Unpublished, r.Wrap("resolve upstream of "+name, err)
		}
	}

	isLocal := make(map[string]bool, len(locals))
	for _, ref := range locals {
		isLocal[ref.Name] = true
		rel, err := classify(ref.Name)
		if err != nil {
			return nil, err
		}
		info := NewInfo(ref.Name, ref.FullName, ref.Hash, rel)
		st.Local = append(st.Local, info)
		if ref.Name == head.Name {
			st.Current = &info
		}
	}
	for _, info := range st.Remote {
		if !isLocal[info.shortName] {
			st.UntrackedRemote = append(st.UntrackedRemote, info)
		}
	}

	// An unborn branch has no ref yet but is still the current branch.
	if st.Current == nil && head.Name != "" {
		rel, err := classify(head.Name)
		if err != nil {
			return nil, err
		}
		info := NewInfo(head.Name, head.FullName, "", rel)
		st.Current = &info
	}

	log.Debug().
		Str("repo", r.Name()).
		Int("local", len(st.Local)).
		Int("remote", len(st.Remote)).
		Int("untracked_remote", len(st.UntrackedRemote)).
		Msg("computed branch status")
	return st, nil
}
