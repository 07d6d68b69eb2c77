package branch

import "encoding/json"

// Status is a point-in-time view of the branches of one repository. It is
// recomputed after every commit, fetch or checkout and never reused.
type Status struct {
	// Current is nil when HEAD is detached.
	Current *Info

	Local           []Info
	Remote          []Info
	UntrackedRemote []Info
}

// CurrentLocalBranch returns the checked-out branch and whether there is
// one.
func (s *Status) CurrentLocalBranch() (Info, bool) {
	if s.Current == nil {
		return Info{}, false
	}
	return *s.Current, true
}

// LocalAndUntrackedRemoteBranches lists every branch the user can check out
// by name: local branches first, then remote branches without a local
// counterpart.
func (s *Status) LocalAndUntrackedRemoteBranches() []Info {
	out := make([]Info, 0, len(s.Local)+len(s.UntrackedRemote))
	out = append(out, s.Local...)
	return append(out, s.UntrackedRemote...)
}

// SwitchCandidates is LocalAndUntrackedRemoteBranches without the current
// branch.
func (s *Status) SwitchCandidates() []Info {
	var out []Info
	for _, b := range s.LocalAndUntrackedRemoteBranches() {
		if s.Current != nil && b.shortName == s.Current.shortName {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Find looks a branch up by short name among the local and untracked remote
// branches.
func (s *Status) Find(shortName string) (Info, bool) {
	for _, b := range s.LocalAndUntrackedRemoteBranches() {
		if b.shortName == shortName {
			return b, true
		}
	}
	return Info{}, false
}

// IsUntrackedRemote reports whether b exists only on the remote.
func (s *Status) IsUntrackedRemote(b Info) bool {
	for _, r := range s.UntrackedRemote {
		if r.shortName == b.shortName {
			return true
		}
	}
	return false
}

func (s *Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Current         *Info  `json:"currentLocalBranch"`
		Local           []Info `json:"localBranches"`
		Remote          []Info `json:"remoteBranches"`
		UntrackedRemote []Info `json:"untrackedRemoteBranches"`
	}{s.Current, nonNil(s.Local), nonNil(s.Remote), nonNil(s.UntrackedRemote)})
}

func nonNil(in []Info) []Info {
	if in == nil {
		return []Info{}
	}
	return in
}
