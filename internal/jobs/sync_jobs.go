package jobs

import (
	"context"

	"github.com/kurobon/modelrepo/internal/branch"
	"github.com/kurobon/modelrepo/internal/engine"
	"github.com/kurobon/modelrepo/internal/model"
	"github.com/kurobon/modelrepo/internal/repo"
)

// Job names.
const (
	ExportName = "Export to Grafico"
	CommitName = "Commit"
	SwitchName = "Switch branch"
	FetchName  = "Fetch"
	PushName   = "Push"
)

// ExportJob exports the host's model into the working tree of h.
func ExportJob(e *engine.Engine, host model.Host, h *repo.Handle) Job {
	return Job{Name: ExportName, Repo: h, Run: func(ctx context.Context) error {
		_, err := e.ExportAndStage(ctx, host, h)
		return err
	}}
}

// CommitJob commits the working tree of h.
func CommitJob(e *engine.Engine, h *repo.Handle, message string) Job {
	return Job{Name: CommitName, Repo: h, Run: func(ctx context.Context) error {
		_, err := e.Commit(ctx, h, message)
		return err
	}}
}

// SwitchJob checks out target and reloads the model into host.
func SwitchJob(e *engine.Engine, host model.Host, h *repo.Handle, target branch.Info, opts engine.SwitchOptions) Job {
	return Job{Name: SwitchName + " to " + target.ShortName(), Repo: h, Run: func(ctx context.Context) error {
		_, err := e.SwitchBranch(ctx, host, h, target, opts)
		return err
	}}
}

// FetchJob fetches from the remote of h.
func FetchJob(e *engine.Engine, h *repo.Handle) Job {
	return Job{Name: FetchName, Repo: h, Run: func(ctx context.Context) error {
		return e.Fetch(ctx, h)
	}}
}

// PushJob pushes the current branch of h.
func PushJob(e *engine.Engine, h *repo.Handle) Job {
	return Job{Name: PushName, Repo: h, Run: func(ctx context.Context) error {
		return e.Push(ctx, h)
	}}
}

// OnModelSaved schedules the export that follows every save of a model
// that lives in a repository.
func (r *Runner) OnModelSaved(e *engine.Engine, host model.Host, h *repo.Handle) error {
	return r.Submit(ExportJob(e, host, h))
}
