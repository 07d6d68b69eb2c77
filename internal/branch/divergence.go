package branch

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/kurobon/modelrepo/internal/vcs"
)

// TrackingState is the position of a branch relative to its upstream.
type TrackingState int

const (
	NoUpstream TrackingState = iota
	UpToDate
	Ahead
	Behind
	Diverged
)

var trackingStateNames = map[TrackingState]string{
	NoUpstream: "no-upstream",
	UpToDate:   "up-to-date",
	Ahead:      "ahead",
	Behind:     "behind",
	Diverged:   "diverged",
}

func (s TrackingState) String() string { return trackingStateNames[s] }

func (s TrackingState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Divergence counts the commits that separate a branch from its upstream.
type Divergence struct {
	Upstream string `json:"upstream,omitempty"` // full ref name, empty without upstream
	Ahead    int    `json:"ahead"`
	Behind   int    `json:"behind"`
}

// State folds the counts into a TrackingState.
func (d Divergence) State() TrackingState {
	switch {
	case d.Upstream == "":
		return NoUpstream
	case d.Ahead > 0 && d.Behind > 0:
		return Diverged
	case d.Ahead > 0:
		return Ahead
	case d.Behind > 0:
		return Behind
	default:
		return UpToDate
	}
}

// Divergence compares b with its upstream: the configured tracking branch,
// or the same-named branch on the repository's remote when none is
// configured. A branch without commits or without a resolvable upstream has
// no upstream.
func (Tracker) Divergence(r Repository, b Info) (Divergence, error) {
	if b.hash == "" {
		return Divergence{}, nil
	}
	git := r.VCS()
	tracking, err := git.TrackingConfig()
	if err != nil {
		return Divergence{}, r.Wrap("read branch config", err)
	}
	upstream := plumbing.NewRemoteReferenceName(r.RemoteName(), b.shortName)
	if tr, ok := tracking[b.shortName]; ok {
		upstream = plumbing.NewRemoteReferenceName(tr.Remote, tr.Merge)
	}
	upHash, err := git.ResolveRef(upstream.String())
	if vcs.IsNotFound(err) {
		return Divergence{}, nil
	}
	if err != nil {
		return Divergence{}, r.Wrap("resolve "+upstream.Short(), err)
	}
	ahead, behind, err := git.CountDivergence(b.hash, upHash)
	if err != nil {
		return Divergence{}, r.Wrap("count divergence of "+b.shortName, err)
	}
	return Divergence{Upstream: upstream.String(), Ahead: ahead, Behind: behind}, nil
}
