package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/modelrepo/internal/branch"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/gittest"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/model"
	"github.com/kurobon/modelrepo/internal/repo"
	"github.com/kurobon/modelrepo/internal/vcs"
)

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []event.Kind
}

func (p *recordingPublisher) Publish(kind event.Kind, _ *repo.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
}

func (p *recordingPublisher) take() []event.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.kinds
	p.kinds = nil
	return out
}

type fixture struct {
	dir    string
	git    *gogit.Repository
	handle *repo.Handle
	engine *Engine
	pub    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, r := gittest.Init(t)
	h, err := repo.Open(dir, repo.Options{})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	e := New(WithPublisher(pub), WithAuthor(vcs.Author{Name: "Ada", Email: "ada@example.com"}))
	return &fixture{dir: dir, git: r, handle: h, engine: e, pub: pub}
}

func baseGraph(t *testing.T) *model.Graph {
	t.Helper()
	g := model.NewGraph("id-model", "Archisurance")
	require.NoError(t, g.AddElement(&model.Element{ID: "id-customer", Type: "BusinessActor", Name: "Customer"}))
	require.NoError(t, g.AddElement(&model.Element{ID: "id-crm", Type: "ApplicationComponent", Name: "CRM"}))
	require.NoError(t, g.AddRelationship(&model.Relationship{
		ID: "id-serves", Type: "ServingRelationship", SourceID: "id-crm", TargetID: "id-customer",
	}))
	return g
}

// commitModel exports g and commits it through the engine.
func (f *fixture) commitModel(t *testing.T, g *model.Graph, msg string) CommitID {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.ExportAndStage(ctx, model.NewLive(g), f.handle)
	require.NoError(t, err)
	id, err := f.engine.Commit(ctx, f.handle, msg)
	require.NoError(t, err)
	return id
}

func (f *fixture) head(t *testing.T) string {
	t.Helper()
	ref, err := f.handle.VCS().Head()
	require.NoError(t, err)
	return ref.Hash
}

func (f *fixture) find(t *testing.T, name string) branch.Info {
	t.Helper()
	st, err := f.engine.Tracker().ComputeStatus(f.handle)
	require.NoError(t, err)
	b, ok := st.Find(name)
	require.True(t, ok, "branch %s", name)
	return b
}

func TestExportAndStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := model.NewLive(baseGraph(t))
	host.MarkDirty(true)

	cs, err := f.engine.ExportAndStage(ctx, host, f.handle)
	require.NoError(t, err)
	assert.Equal(t, 4, cs.Count(grafico.Added))
	assert.Contains(t, cs.Paths(), "model/elements/BusinessActor_id-customer.yaml")
	assert.False(t, host.IsDirty())
	assert.Equal(t, []event.Kind{event.RepositoryChanged}, f.pub.take())

	snap, err := f.engine.State(ctx, f.handle)
	require.NoError(t, err)
	assert.Equal(t, Staged, snap.State)
	assert.Equal(t, "main", snap.Branch)
	assert.Equal(t, branch.NoUpstream, snap.Tracking())

	_, err = f.engine.Commit(ctx, f.handle, "initial model")
	require.NoError(t, err)
	f.pub.take()

	cs, err = f.engine.ExportAndStage(ctx, host, f.handle)
	require.NoError(t, err)
	assert.True(t, cs.Empty(), "unchanged model exports to an empty change set")
	assert.Empty(t, f.pub.take())
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.commitModel(t, baseGraph(t), "initial model")
	assert.Len(t, id.String(), 40)
	assert.Equal(t, id.String()[:7], id.Short())
	assert.Equal(t, id.String(), f.head(t))
	assert.Equal(t, []event.Kind{event.RepositoryChanged, event.HistoryChanged}, f.pub.take())

	c, err := f.git.CommitObject(plumbing.NewHash(id.String()))
	require.NoError(t, err)
	assert.Equal(t, "initial model", c.Message)
	assert.Equal(t, "Ada", c.Author.Name)
	assert.Equal(t, "ada@example.com", c.Committer.Email)

	snap, err := f.engine.State(ctx, f.handle)
	require.NoError(t, err)
	assert.Equal(t, Committed, snap.State)
	assert.True(t, snap.Changes.Empty())

	// A change the user made by hand is picked up and staged by Commit.
	gittest.WriteFile(t, f.dir, "README.md", "notes")
	snap, err = f.engine.State(ctx, f.handle)
	require.NoError(t, err)
	assert.Equal(t, Dirty, snap.State)

	_, err = f.engine.Commit(ctx, f.handle, "notes")
	require.NoError(t, err)
	dirty, err := f.handle.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestCommitWithNothingToCommit(t *testing.T) {
	t.Run("unborn branch", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Commit(context.Background(), f.handle, "empty")
		assert.ErrorIs(t, err, ErrNothingToCommit)
		assert.Empty(t, f.head(t), "no commit object was created")
	})

	t.Run("clean tree", func(t *testing.T) {
		f := newFixture(t)
		before := f.commitModel(t, baseGraph(t), "initial model")
		f.pub.take()

		_, err := f.engine.Commit(context.Background(), f.handle, "again")
		assert.ErrorIs(t, err, ErrNothingToCommit)
		assert.Equal(t, before.String(), f.head(t))
		assert.Empty(t, f.pub.take())

		iter, err := f.git.Log(&gogit.LogOptions{})
		require.NoError(t, err)
		n := 0
		require.NoError(t, iter.ForEach(func(*object.Commit) error { n++; return nil }))
		assert.Equal(t, 1, n)
	})
}

func TestImportFromDisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.commitModel(t, baseGraph(t), "initial model")

	host := model.NewLive(nil)
	require.NoError(t, host.Edit(func(g *model.Graph) error {
		return g.AddElement(&model.Element{ID: "id-draft", Type: "Goal", Name: "Draft"})
	}))

	_, err := f.engine.ImportFromDisk(ctx, host, f.handle, ImportOptions{})
	var conflict *UnsavedChangesConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.True(t, host.Graph().Contains("id-draft"), "live model is untouched")
	assert.True(t, host.IsDirty())

	g, err := f.engine.ImportFromDisk(ctx, host, f.handle, ImportOptions{Discard: true})
	require.NoError(t, err)
	assert.True(t, model.Equivalent(baseGraph(t), g))
	assert.True(t, model.Equivalent(baseGraph(t), host.Graph()))
	assert.False(t, host.IsDirty())
}

// editingHost edits the live model right after the engine takes its
// snapshot, as a user saving during an export would.
type editingHost struct {
	*model.Live
}

func (h editingHost) Snapshot() (*model.Graph, uint64) {
	g, gen := h.Live.Snapshot()
	_ = h.Live.Edit(func(g *model.Graph) error {
		return g.AddElement(&model.Element{ID: "id-late", Type: "Goal", Name: "Late"})
	})
	return g, gen
}

func TestEditDuringExportStaysUnsaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	live := model.NewLive(baseGraph(t))
	live.MarkDirty(true)

	_, err := f.engine.ExportAndStage(ctx, editingHost{live}, f.handle)
	require.NoError(t, err)
	assert.True(t, live.IsDirty(), "the late edit was never exported")
	assert.NoFileExists(t, filepath.Join(f.dir, "model", "elements", "Goal_id-late.yaml"))

	_, err = f.engine.ImportFromDisk(ctx, live, f.handle, ImportOptions{})
	var conflict *UnsavedChangesConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.True(t, live.Graph().Contains("id-late"))

	_, err = f.engine.ExportAndStage(ctx, live, f.handle)
	require.NoError(t, err)
	assert.False(t, live.IsDirty())
	assert.FileExists(t, filepath.Join(f.dir, "model", "elements", "Goal_id-late.yaml"))
}

func TestFailedImportLeavesHostUntouched(t *testing.T) {
	f := newFixture(t)
	f.commitModel(t, baseGraph(t), "initial model")
	gittest.WriteFile(t, f.dir, "model/relations/ServingRelationship_id-broken.yaml",
		"schema: 1\nid: id-broken\ntype: ServingRelationship\nsource: id-crm\ntarget: id-nowhere\n")

	original := model.NewGraph("id-other", "Other")
	host := model.NewLive(original.Clone())

	_, err := f.engine.ImportFromDisk(context.Background(), host, f.handle, ImportOptions{})
	require.Error(t, err)
	var refErr *grafico.ReferenceError
	assert.True(t, errors.As(err, &refErr), "got %v", err)
	assert.True(t, model.Equivalent(original, host.Graph()))
}

func TestSwitchBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mainHash := f.commitModel(t, baseGraph(t), "initial model")

	// feature adds an element.
	gittest.Branch(t, f.git, "feature", plumbing.NewHash(mainHash.String()))
	require.NoError(t, f.handle.VCS().Checkout("feature", false))
	featureGraph := baseGraph(t)
	require.NoError(t, featureGraph.AddElement(&model.Element{ID: "id-goal", Type: "Goal", Name: "Grow"}))
	f.commitModel(t, featureGraph, "add goal")
	require.NoError(t, f.handle.VCS().Checkout("main", false))
	f.pub.take()

	host := model.NewLive(baseGraph(t))
	g, err := f.engine.SwitchBranch(ctx, host, f.handle, f.find(t, "feature"), SwitchOptions{})
	require.NoError(t, err)
	assert.True(t, model.Equivalent(featureGraph, g))
	assert.True(t, host.Graph().Contains("id-goal"))

	current, err := f.handle.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature", current)
	assert.Equal(t, []event.Kind{event.BranchesChanged, event.RepositoryChanged}, f.pub.take())

	g, err = f.engine.SwitchBranch(ctx, host, f.handle, f.find(t, "main"), SwitchOptions{})
	require.NoError(t, err)
	assert.False(t, g.Contains("id-goal"))
}

func TestSwitchBranchRefusesDirtyWorkingTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.commitModel(t, baseGraph(t), "initial model")
	gittest.Branch(t, f.git, "feature", plumbing.NewHash(h.String()))

	gittest.WriteFile(t, f.dir, "model/elements/Goal_id-wip.yaml", "schema: 1\nid: id-wip\ntype: Goal\n")
	host := model.NewLive(baseGraph(t))
	f.pub.take()

	_, err := f.engine.SwitchBranch(ctx, host, f.handle, f.find(t, "feature"), SwitchOptions{})
	var dirty *DirtyWorkingTreeError
	require.True(t, errors.As(err, &dirty), "got %v", err)
	assert.Equal(t, []string{"model/elements/Goal_id-wip.yaml"}, dirty.Paths)
	assert.False(t, dirty.UnsavedModel)
	assert.Equal(t, "Commit your changes before switching branches.", UserMessage(err))

	current, err := f.handle.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", current)
	assert.Empty(t, f.pub.take())
}

func TestSwitchBranchRefusesUnsavedModel(t *testing.T) {
	f := newFixture(t)
	h := f.commitModel(t, baseGraph(t), "initial model")
	gittest.Branch(t, f.git, "feature", plumbing.NewHash(h.String()))

	host := model.NewLive(baseGraph(t))
	host.MarkDirty(true)

	_, err := f.engine.SwitchBranch(context.Background(), host, f.handle, f.find(t, "feature"), SwitchOptions{})
	var dirty *DirtyWorkingTreeError
	require.True(t, errors.As(err, &dirty))
	assert.True(t, dirty.UnsavedModel)
	assert.Empty(t, dirty.Paths)
}

func TestForcedSwitchDiscardsWork(t *testing.T) {
	f := newFixture(t)
	h := f.commitModel(t, baseGraph(t), "initial model")
	gittest.Branch(t, f.git, "feature", plumbing.NewHash(h.String()))

	gittest.WriteFile(t, f.dir, "model/elements/Goal_id-wip.yaml", "schema: 1\nid: id-wip\ntype: Goal\n")
	gittest.WriteFile(t, f.dir, "notes.txt", "keep me")
	host := model.NewLive(baseGraph(t))
	host.MarkDirty(true)

	g, err := f.engine.SwitchBranch(context.Background(), host, f.handle, f.find(t, "feature"), SwitchOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, g.Contains("id-wip"))
	assert.False(t, host.IsDirty())

	_, err = os.Stat(filepath.Join(f.dir, "model", "elements", "Goal_id-wip.yaml"))
	assert.True(t, os.IsNotExist(err), "untracked model file removed")
	_, err = os.Stat(filepath.Join(f.dir, "notes.txt"))
	assert.NoError(t, err, "files outside the model are left alone")
}

func TestSwitchToUntrackedRemoteBranch(t *testing.T) {
	f := newFixture(t)
	h := f.commitModel(t, baseGraph(t), "initial model")
	gittest.RemoteBranch(t, f.git, "origin", "review", plumbing.NewHash(h.String()))
	host := model.NewLive(baseGraph(t))

	target := f.find(t, "review")
	assert.True(t, target.HasRemoteRef())

	_, err := f.engine.SwitchBranch(context.Background(), host, f.handle, target, SwitchOptions{})
	require.NoError(t, err)

	current, err := f.handle.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "review", current)

	tracking, err := f.handle.VCS().TrackingConfig()
	require.NoError(t, err)
	assert.Equal(t, vcs.Tracking{Remote: "origin", Merge: "review"}, tracking["review"])

	snap, err := f.engine.State(context.Background(), f.handle)
	require.NoError(t, err)
	assert.Equal(t, branch.UpToDate, snap.Tracking())
}

type failingCheckout struct {
	vcs.Primitives
}

func (failingCheckout) Checkout(string, bool) error { return errors.New("disk full") }

func TestFailedSwitchRemovesCreatedTrackingBranch(t *testing.T) {
	f := newFixture(t)
	h := f.commitModel(t, baseGraph(t), "initial model")
	gittest.RemoteBranch(t, f.git, "origin", "review", plumbing.NewHash(h.String()))
	target := f.find(t, "review")

	handle := f.handle.WithPrimitives(failingCheckout{Primitives: f.handle.VCS()})
	_, err := f.engine.SwitchBranch(context.Background(), model.NewLive(baseGraph(t)), handle, target, SwitchOptions{})
	var gitErr *repo.GitAccessError
	require.True(t, errors.As(err, &gitErr), "got %v", err)

	_, err = f.handle.VCS().ResolveRef("refs/heads/review")
	assert.True(t, vcs.IsNotFound(err), "got %v", err)
	tracking, err := f.handle.VCS().TrackingConfig()
	require.NoError(t, err)
	assert.NotContains(t, tracking, "review")

	st, err := f.engine.Tracker().ComputeStatus(f.handle)
	require.NoError(t, err)
	b, ok := st.Find("review")
	require.True(t, ok)
	assert.True(t, st.IsUntrackedRemote(b))
}

func TestSwitchToUnknownBranch(t *testing.T) {
	f := newFixture(t)
	f.commitModel(t, baseGraph(t), "initial model")

	ghost := branch.NewInfo("ghost", "refs/heads/ghost", "", branch.Unpublished)
	_, err := f.engine.SwitchBranch(context.Background(), model.NewLive(nil), f.handle, ghost, SwitchOptions{})
	var unknown *UnknownBranchError
	assert.True(t, errors.As(err, &unknown))
}

func TestStateTracksUpstream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.commitModel(t, baseGraph(t), "initial model")
	gittest.RemoteBranch(t, f.git, "origin", "main", plumbing.NewHash(h.String()))
	gittest.Track(t, f.git, "main", "origin")

	g := baseGraph(t)
	g.RemoveElement("id-crm")
	f.commitModel(t, g, "drop crm")

	snap, err := f.engine.State(ctx, f.handle)
	require.NoError(t, err)
	assert.Equal(t, Committed, snap.State)
	assert.Equal(t, branch.Ahead, snap.Tracking())
	assert.Equal(t, 1, snap.Divergence.Ahead)
}

// blockingRemote stands in for a slow network remote.
type blockingRemote struct {
	vcs.Primitives
	fetched chan struct{}
	pushed  []string
}

func (b *blockingRemote) Fetch(ctx context.Context, _ string) error {
	close(b.fetched)
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingRemote) Push(_ context.Context, remote, branch string) error {
	b.pushed = append(b.pushed, remote+"/"+branch)
	return nil
}

func TestFetchCancellation(t *testing.T) {
	f := newFixture(t)
	remote := &blockingRemote{Primitives: f.handle.VCS(), fetched: make(chan struct{})}
	h := f.handle.WithPrimitives(remote)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-remote.fetched
		cancel()
	}()

	err := f.engine.Fetch(ctx, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var gerr *repo.GitAccessError
	assert.True(t, errors.As(err, &gerr))
	assert.Equal(t, "The operation was cancelled.", UserMessage(err))
	assert.Empty(t, f.pub.take())
}

func TestPush(t *testing.T) {
	f := newFixture(t)
	f.commitModel(t, baseGraph(t), "initial model")
	f.pub.take()

	remote := &blockingRemote{Primitives: f.handle.VCS()}
	require.NoError(t, f.engine.Push(context.Background(), f.handle.WithPrimitives(remote)))
	assert.Equal(t, []string{"origin/main"}, remote.pushed)
	assert.Equal(t, []event.Kind{event.BranchesChanged}, f.pub.take())
}

func TestOperationsOnSameRepositoryAreSerialised(t *testing.T) {
	f := newFixture(t)
	unlock, err := f.engine.lock(context.Background(), f.handle)
	require.NoError(t, err)

	// A second handle on the same path shares the lock.
	other, err := repo.Open(f.dir, repo.Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.engine.Commit(ctx, other, "blocked")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A different repository is not affected.
	g := newFixture(t)
	_, err = f.engine.Commit(context.Background(), g.handle, "independent")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	unlock()
	_, err = f.engine.Commit(context.Background(), other, "free")
	assert.ErrorIs(t, err, ErrNothingToCommit)
}
