package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/repo"
)

// Fetch updates the remote-tracking branches of h. Failures are returned as
// they are; the engine never retries. Cancelling ctx stops the transfer
// without moving any ref.
func (e *Engine) Fetch(ctx context.Context, h *repo.Handle) error {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return err
	}
	defer unlock()

	if err := h.VCS().Fetch(ctx, h.RemoteName()); err != nil {
		return h.Wrap("fetch", withCause(ctx, err))
	}
	log.Info().Str("repo", h.Name()).Str("remote", h.RemoteName()).Msg("fetched")
	e.publish(event.BranchesChanged, h)
	e.publish(event.HistoryChanged, h)
	return nil
}

// Push publishes the current branch to the remote and makes the remote
// branch its upstream.
func (e *Engine) Push(ctx context.Context, h *repo.Handle) error {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return err
	}
	defer unlock()

	name, err := h.CurrentBranch()
	if err != nil {
		return err
	}
	if name == "" {
		return ErrDetachedHead
	}
	if err := h.VCS().Push(ctx, h.RemoteName(), name); err != nil {
		return h.Wrap("push "+name, withCause(ctx, err))
	}
	log.Info().Str("repo", h.Name()).Str("branch", name).Str("remote", h.RemoteName()).Msg("pushed")
	e.publish(event.BranchesChanged, h)
	return nil
}

// withCause makes a transport error caused by cancellation match
// context.Canceled or context.DeadlineExceeded.
func withCause(ctx context.Context, err error) error {
	cerr := ctx.Err()
	if cerr == nil || errors.Is(err, cerr) {
		return err
	}
	return fmt.Errorf("%w: %w", cerr, err)
}
