// Package branch classifies the local and remote branches of a repository.
package branch

import (
	"encoding/json"
	"fmt"
)

// Remote describes how a branch relates to the configured remote.
type Remote int

const (
	// Unpublished: no same-named remote-tracking ref and no upstream that
	// went missing.
	Unpublished Remote = iota
	// Available: a same-named remote-tracking ref exists.
	Available
	// Deleted: the branch tracks a remote ref that no longer resolves.
	Deleted
)

func (r Remote) String() string {
	switch r {
	case Available:
		return "available"
	case Deleted:
		return "deleted"
	default:
		return "unpublished"
	}
}

// Info is an immutable snapshot of one branch. The remote relation is a
// single value, so HasRemoteRef and IsRemoteDeleted are never both true.
type Info struct {
	shortName string
	fullName  string
	hash      string
	remote    Remote
}

// NewInfo builds a snapshot. hash may be empty for an unborn branch.
func NewInfo(shortName, fullName, hash string, remote Remote) Info {
	return Info{shortName: shortName, fullName: fullName, hash: hash, remote: remote}
}

func (i Info) ShortName() string { return i.shortName }
func (i Info) FullName() string  { return i.fullName }
func (i Info) Hash() string      { return i.hash }
func (i Info) Remote() Remote    { return i.remote }

// HasRemoteRef reports that a same-named branch exists on the remote.
func (i Info) HasRemoteRef() bool { return i.remote == Available }

// IsRemoteDeleted reports that the tracked remote ref has disappeared.
func (i Info) IsRemoteDeleted() bool { return i.remote == Deleted }

// Label is the branch name decorated for a branch picker.
func (i Info) Label() string {
	return fmt.Sprintf("%s (%s)", i.shortName, i.remote)
}

func (i Info) String() string { return i.fullName }

func (i Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ShortName       string `json:"shortName"`
		FullName        string `json:"fullName"`
		Hash            string `json:"hash,omitempty"`
		HasRemoteRef    bool   `json:"hasRemoteRef"`
		IsRemoteDeleted bool   `json:"isRemoteDeleted"`
		Label           string `json:"label"`
	}{i.shortName, i.fullName, i.hash, i.HasRemoteRef(), i.IsRemoteDeleted(), i.Label()})
}
