// Package event delivers repository notifications to registered listeners.
//
// A Bus is an explicit registry that callers create and inject; there is no
// package-level instance. Listeners run synchronously on the goroutine that
// calls Publish, in the order they subscribed. Publishes are serialised, so
// a listener must not publish on the same bus from inside its callback.
package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/kurobon/modelrepo/internal/repo"
)

// ErrSubscriptionNotFound is returned when unsubscribing twice or with a
// subscription from another bus.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Kind names what changed in a repository.
type Kind int

const (
	RepositoryAdded Kind = iota + 1
	RepositoryRemoved
	// RepositoryChanged: working tree or model content changed.
	RepositoryChanged
	// HistoryChanged: commits were created or fetched.
	HistoryChanged
	// BranchesChanged: branches were created, switched or updated.
	BranchesChanged
)

var kindNames = map[Kind]string{
	RepositoryAdded:   "repository-added",
	RepositoryRemoved: "repository-removed",
	RepositoryChanged: "repository-changed",
	HistoryChanged:    "history-changed",
	BranchesChanged:   "branches-changed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is one notification.
type Event struct {
	Kind       Kind
	Repository *repo.Handle
	Time       time.Time
}

// Listener receives events.
type Listener interface {
	OnRepositoryEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnRepositoryEvent(e Event) { f(e) }
