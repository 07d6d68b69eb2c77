package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/modelrepo/internal/engine"
	"github.com/kurobon/modelrepo/internal/gittest"
	"github.com/kurobon/modelrepo/internal/model"
	"github.com/kurobon/modelrepo/internal/repo"
)

func collect(r *Runner) []Result {
	var out []Result
	for res := range r.Results() {
		out = append(out, res)
	}
	return out
}

func TestRunnerRunsJobsInOrder(t *testing.T) {
	r := NewRunner()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		require.NoError(t, r.Submit(Job{Name: name, Run: func(context.Context) error {
			order = append(order, name)
			return nil
		}}))
	}
	boom := errors.New("boom")
	require.NoError(t, r.Submit(Job{Name: "fails", Run: func(context.Context) error { return boom }}))

	r.Close()
	results := collect(r)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	require.Len(t, results, 4)
	assert.Equal(t, "a", results[0].Job.Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "fails", results[3].Job.Name)
	assert.ErrorIs(t, results[3].Err, boom)
}

func TestSubmitAfterClose(t *testing.T) {
	r := NewRunner()
	r.Close()
	assert.ErrorIs(t, r.Submit(Job{Name: "late", Run: func(context.Context) error { return nil }}), ErrClosed)
	assert.Empty(t, collect(r))
}

func TestAbortCancelsRunningJob(t *testing.T) {
	r := NewRunner()
	started := make(chan struct{})
	require.NoError(t, r.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}}))
	require.NoError(t, r.Submit(Job{Name: "queued", Run: func(context.Context) error { return nil }}))

	<-started
	r.Abort()
	results := collect(r)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
}

func TestOnModelSavedExports(t *testing.T) {
	dir, _ := gittest.Init(t)
	h, err := repo.Open(dir, repo.Options{})
	require.NoError(t, err)

	g := model.NewGraph("id-model", "Saved")
	require.NoError(t, g.AddElement(&model.Element{ID: "id-goal", Type: "Goal", Name: "Ship"}))
	host := model.NewLive(g)
	host.MarkDirty(true)

	e := engine.New()
	r := NewRunner()
	require.NoError(t, r.OnModelSaved(e, host, h))
	require.NoError(t, r.Submit(CommitJob(e, h, "saved")))
	r.Close()

	results := collect(r)
	require.Len(t, results, 2)
	assert.Equal(t, ExportName, results[0].Job.Name)
	assert.Same(t, h, results[0].Job.Repo)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.False(t, host.IsDirty())

	head, err := h.VCS().Head()
	require.NoError(t, err)
	assert.NotEmpty(t, head.Hash)
}
