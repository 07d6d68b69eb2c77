package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/branch"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/model"
	"github.com/kurobon/modelrepo/internal/repo"
	"github.com/kurobon/modelrepo/internal/vcs"
)

// ImportOptions tune ImportFromDisk.
type ImportOptions struct {
	// Discard drops unsaved edits of the live model instead of failing.
	Discard bool
}

// SwitchOptions tune SwitchBranch.
type SwitchOptions struct {
	// Force switches over uncommitted files and unsaved model edits,
	// discarding both.
	Force bool
}

// ExportAndStage writes the host's model into the working tree and stages
// it. The result is every uncommitted change relative to HEAD, not only the
// files written by this export. The host is marked clean afterwards unless
// it was edited while the export ran; those edits stay unsaved.
func (e *Engine) ExportAndStage(ctx context.Context, host model.Host, h *repo.Handle) (grafico.ChangeSet, error) {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return nil, err
	}
	defer unlock()

	g, gen := host.Snapshot()
	written, err := codecFor(h).Export(g, h.FS())
	if err != nil {
		return nil, err
	}
	if err := h.VCS().StageAll(); err != nil {
		return nil, h.Wrap("stage", err)
	}
	if !host.MarkClean(gen) {
		log.Debug().Str("repo", h.Name()).Msg("model edited during export, keeping it dirty")
	}

	status, err := h.Status()
	if err != nil {
		return nil, err
	}
	changes := changeSetFromStatus(status)
	log.Info().
		Str("repo", h.Name()).
		Int("written", len(written)).
		Int("uncommitted", len(changes)).
		Msg("exported model")
	if !changes.Empty() {
		e.setCommitted(h, false)
		e.publish(event.RepositoryChanged, h)
	}
	return changes, nil
}

// Commit records every uncommitted change as one commit. It fails with
// ErrNothingToCommit, creating nothing, when the working tree matches HEAD.
func (e *Engine) Commit(ctx context.Context, h *repo.Handle, message string) (CommitID, error) {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return "", err
	}
	defer unlock()

	status, err := h.Status()
	if err != nil {
		return "", err
	}
	if len(status) == 0 {
		return "", ErrNothingToCommit
	}
	git := h.VCS()
	if err := git.StageAll(); err != nil {
		return "", h.Wrap("stage", err)
	}
	hash, err := git.Commit(message, e.author)
	if err != nil {
		return "", h.Wrap("commit", err)
	}
	id := CommitID(hash)
	e.setCommitted(h, true)
	log.Info().Str("repo", h.Name()).Str("commit", id.Short()).Int("files", len(status)).Msg("committed")
	e.publish(event.HistoryChanged, h)
	return id, nil
}

// ImportFromDisk rebuilds the model from the working tree and swaps it into
// the host. When the import fails the host keeps its current model.
func (e *Engine) ImportFromDisk(ctx context.Context, host model.Host, h *repo.Handle, opts ImportOptions) (*model.Graph, error) {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.importLocked(host, h, opts)
}

func (e *Engine) importLocked(host model.Host, h *repo.Handle, opts ImportOptions) (*model.Graph, error) {
	if host.IsDirty() && !opts.Discard {
		return nil, &UnsavedChangesConflictError{Repo: h.Root()}
	}
	g, err := codecFor(h).Import(h.FS())
	if err != nil {
		return nil, err
	}
	host.ReplaceGraph(g.Clone())
	host.MarkDirty(false)

	els, rels := g.Len()
	log.Info().Str("repo", h.Name()).Int("elements", els).Int("relationships", rels).Msg("imported model")
	e.publish(event.RepositoryChanged, h)
	return g, nil
}

// SwitchBranch checks out target and reloads the model from it. A branch
// that exists only on the remote gets a local tracking branch first.
//
// Without Force the switch is refused with *DirtyWorkingTreeError while the
// working tree has uncommitted changes or the host has unsaved edits, and
// nothing changes. With Force both are discarded, including untracked model
// files that would otherwise be read into the new model. A tracking branch
// created for the switch is removed again when the checkout fails.
func (e *Engine) SwitchBranch(ctx context.Context, host model.Host, h *repo.Handle, target branch.Info, opts SwitchOptions) (*model.Graph, error) {
	unlock, err := e.lock(ctx, h)
	if err != nil {
		return nil, err
	}
	defer unlock()

	name := target.ShortName()
	st, err := e.tracker.ComputeStatus(h)
	if err != nil {
		return nil, err
	}
	if cur, ok := st.CurrentLocalBranch(); ok && cur.ShortName() == name && !opts.Force {
		return host.Graph(), nil
	}
	known, ok := st.Find(name)
	if !ok {
		return nil, &UnknownBranchError{Name: name}
	}

	status, err := h.Status()
	if err != nil {
		return nil, err
	}
	if !opts.Force && (len(status) > 0 || host.IsDirty()) {
		derr := &DirtyWorkingTreeError{Repo: h.Root(), Branch: name, UnsavedModel: host.IsDirty()}
		for _, s := range status {
			derr.Paths = append(derr.Paths, s.Path)
		}
		return nil, derr
	}

	git := h.VCS()
	created := st.IsUntrackedRemote(known)
	if created {
		if err := git.CreateTrackingBranch(name, h.RemoteName()); err != nil {
			return nil, h.Wrap("create branch "+name, err)
		}
		log.Info().Str("repo", h.Name()).Str("branch", name).Msg("created tracking branch")
	}
	if err := git.Checkout(name, opts.Force); err != nil {
		if created {
			if derr := git.DeleteBranch(name); derr != nil {
				log.Warn().Err(derr).Str("repo", h.Name()).Str("branch", name).Msg("cannot remove tracking branch after failed checkout")
			}
		}
		return nil, h.Wrap("checkout "+name, err)
	}
	if opts.Force {
		if err := removeUntrackedModelFiles(h); err != nil {
			return nil, err
		}
	}
	e.setCommitted(h, false)
	log.Info().Str("repo", h.Name()).Str("branch", name).Bool("force", opts.Force).Msg("switched branch")
	e.publish(event.BranchesChanged, h)

	return e.importLocked(host, h, ImportOptions{Discard: true})
}

func removeUntrackedModelFiles(h *repo.Handle) error {
	status, err := h.VCS().StatusDiff()
	if err != nil {
		return h.Wrap("status", err)
	}
	for _, s := range status {
		if !s.Untracked() || !grafico.IsGraficoPath(s.Path) {
			continue
		}
		if err := h.FS().Remove(s.Path); err != nil {
			return fmt.Errorf("remove untracked %s: %w", s.Path, err)
		}
		log.Debug().Str("repo", h.Name()).Str("path", s.Path).Msg("removed untracked model file")
	}
	return nil
}

func changeSetFromStatus(status []vcs.FileStatus) grafico.ChangeSet {
	changes := make([]grafico.Change, 0, len(status))
	for _, s := range status {
		kind := grafico.Modified
		switch {
		case s.Deleted():
			kind = grafico.Deleted
		case s.Added():
			kind = grafico.Added
		}
		changes = append(changes, grafico.Change{Path: s.Path, Kind: kind})
	}
	return grafico.NewChangeSet(changes...)
}
