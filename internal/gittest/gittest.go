// Package gittest builds throwaway go-git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// Signature is the author used by test commits.
func Signature() *object.Signature {
	return &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()}
}

// Init creates an empty repository with a working tree in a temporary
// directory whose initial branch is "main".
func Init(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	return dir, repo
}

// WriteFile writes content to the slash separated path rel under dir.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// CommitAll stages everything and commits it, returning the new hash.
func CommitAll(t *testing.T, repo *gogit.Repository, msg string) plumbing.Hash {
	t.Helper()
	w, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, w.AddWithOptions(&gogit.AddOptions{All: true}))
	h, err := w.Commit(msg, &gogit.CommitOptions{Author: Signature(), AllowEmptyCommits: true})
	require.NoError(t, err)
	return h
}

// Branch creates a local branch at hash.
func Branch(t *testing.T, repo *gogit.Repository, name string, hash plumbing.Hash) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	require.NoError(t, repo.Storer.SetReference(ref))
}

// RemoteBranch writes refs/remotes/<remote>/<name> directly, as a fetch
// would.
func RemoteBranch(t *testing.T, repo *gogit.Repository, remote, name string, hash plumbing.Hash) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remote, name), hash)
	require.NoError(t, repo.Storer.SetReference(ref))
}

// Track configures branch to track the same-named branch on remote.
func Track(t *testing.T, repo *gogit.Repository, branch, remote string) {
	t.Helper()
	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Branches[branch] = &config.Branch{
		Name:   branch,
		Remote: remote,
		Merge:  plumbing.NewBranchReferenceName(branch),
	}
	require.NoError(t, repo.SetConfig(cfg))
}

// AddRemote registers a remote with the given URL.
func AddRemote(t *testing.T, repo *gogit.Repository, name, url string) {
	t.Helper()
	_, err := repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	require.NoError(t, err)
}
