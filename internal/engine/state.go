package engine

import (
	"context"
	"encoding/json"

	"github.com/kurobon/modelrepo/internal/branch"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/repo"
)

// State is where a working tree stands in the export/commit cycle.
type State int

const (
	// Clean: the working tree matches HEAD.
	Clean State = iota
	// Dirty: some changes are not staged.
	Dirty
	// Staged: every change is staged and waiting to be committed.
	Staged
	// Committed: the last engine operation was a commit and nothing has
	// changed since.
	Committed
)

func (s State) String() string {
	switch s {
	case Dirty:
		return "dirty"
	case Staged:
		return "staged"
	case Committed:
		return "committed"
	default:
		return "clean"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is the state of one repository at a point in time.
type Snapshot struct {
	State      State
	Branch     string
	Changes    grafico.ChangeSet
	Divergence branch.Divergence
}

// Tracking is the position of the current branch relative to its upstream.
func (s Snapshot) Tracking() branch.TrackingState { return s.Divergence.State() }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	changes := s.Changes
	if changes == nil {
		changes = grafico.ChangeSet{}
	}
	return json.Marshal(struct {
		State      State                `json:"state"`
		Branch     string               `json:"branch"`
		Tracking   branch.TrackingState `json:"tracking"`
		Divergence branch.Divergence    `json:"divergence"`
		Changes    grafico.ChangeSet    `json:"changes"`
	}{s.State, s.Branch, s.Tracking(), s.Divergence, changes})
}

// State reports the working-tree state of h and how its current branch
// relates to the upstream.
func (e *Engine) State(ctx context.Context, h *repo.Handle) (Snapshot, error) {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	status, err := h.Status()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Changes: changeSetFromStatus(status)}
	switch {
	case len(status) == 0 && e.wasCommitted(h):
		snap.State = Committed
	case len(status) == 0:
		snap.State = Clean
	default:
		snap.State = Staged
		for _, s := range status {
			if s.Worktree != ' ' {
				snap.State = Dirty
				break
			}
		}
		e.setCommitted(h, false)
	}

	st, err := e.tracker.ComputeStatus(h)
	if err != nil {
		return Snapshot{}, err
	}
	if cur, ok := st.CurrentLocalBranch(); ok {
		snap.Branch = cur.ShortName()
		if snap.Divergence, err = e.tracker.Divergence(h, cur); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}
