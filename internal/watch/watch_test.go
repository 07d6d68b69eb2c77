package watch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/gittest"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/repo"
)

type counter struct{ n atomic.Int32 }

func (c *counter) Publish(kind event.Kind, _ *repo.Handle) {
	if kind == event.RepositoryChanged {
		c.n.Add(1)
	}
}

func newWatcher(t *testing.T) (string, *counter) {
	t.Helper()
	dir, _ := gittest.Init(t)
	gittest.WriteFile(t, dir, "model/model.yaml", "schema: 1\n")
	h, err := repo.Open(dir, repo.Options{Ignore: grafico.NewMatcher([]string{"*.swp"})})
	require.NoError(t, err)

	c := &counter{}
	w, err := New(h, c, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return dir, c
}

func TestPublishesOnceForABurst(t *testing.T) {
	dir, c := newWatcher(t)

	for i := 0; i < 5; i++ {
		gittest.WriteFile(t, dir, "model/elements/Goal_id-g.yaml", "schema: 1\n")
	}
	require.Eventually(t, func() bool { return c.n.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), c.n.Load())
}

func TestWatchesNewDirectories(t *testing.T) {
	dir, c := newWatcher(t)

	gittest.WriteFile(t, dir, "model/relations/.keep", "")
	require.Eventually(t, func() bool { return c.n.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	before := c.n.Load()
	time.Sleep(100 * time.Millisecond)
	gittest.WriteFile(t, dir, "model/relations/ServingRelationship_id-r.yaml", "schema: 1\n")
	require.Eventually(t, func() bool { return c.n.Load() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestIgnoresMetadataAndIgnoredFiles(t *testing.T) {
	dir, c := newWatcher(t)

	gittest.WriteFile(t, dir, ".git/scratch", "x")
	gittest.WriteFile(t, dir, "model/.model.yaml.swp", "x")
	assert.Never(t, func() bool { return c.n.Load() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	dir, _ := gittest.Init(t)
	h, err := repo.Open(dir, repo.Options{})
	require.NoError(t, err)
	w, err := New(h, &counter{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
