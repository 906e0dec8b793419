package publisher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBareRemote creates a bare repository with one commit on main.
func newBareRemote(t *testing.T) string {
	t.Helper()
	remoteDir := t.TempDir()
	_, err := git.PlainInitWithOptions(remoteDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
		Bare:        true,
	})
	require.NoError(t, err)

	seedDir := t.TempDir()
	seed, err := git.PlainInitWithOptions(seedDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "README.md"), []byte("dashboard\n"), 0644))
	wt, err := seed.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	_, err = seed.CreateRemote(&config.RemoteConfig{Name: DefaultRemote, URLs: []string{remoteDir}})
	require.NoError(t, err)
	require.NoError(t, seed.Push(&git.PushOptions{
		RemoteName: DefaultRemote,
		RefSpecs:   []config.RefSpec{"refs/heads/main:refs/heads/main"},
	}))
	return remoteDir
}

func TestGitCloner_PublishesToBareRemote(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binaries are required for the file transport")
	}
	remoteDir := newBareRemote(t)

	p, err := New(Config{
		RepoURL: remoteDir,
		Cloner: NewGitCloner(GitConfig{
			URL:         remoteDir,
			Branch:      DefaultBranch,
			AuthorName:  "perf bot",
			AuthorEmail: "perf@example.com",
		}),
		TempDir: t.TempDir(),
		Log:     log.NewLogger(log.DiscardHandler()),
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	artifact := writeArtifact(t, t.TempDir(), 3, 2, 1, "abc")
	require.NoError(t, p.Upload(context.Background(), artifact))

	remote, err := git.PlainOpen(remoteDir)
	require.NoError(t, err)
	ref, err := remote.Reference(plumbing.Main, true)
	require.NoError(t, err)
	commit, err := remote.CommitObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Add performance results - 2025-07-15 08:30:00", commit.Message)
	assert.Equal(t, "perf bot", commit.Author.Name)

	tree, err := commit.Tree()
	require.NoError(t, err)
	for _, path := range []string{
		"data/daily/2025-07-14_eltwise_perf_results_20250714_102233_final.json",
		"data/latest/latest_results.json",
		"data/index.json",
		"README.md",
	} {
		_, err := tree.File(path)
		assert.NoError(t, err, path)
	}

	// Publishing the same artifact again is a no-op.
	require.NoError(t, p.Upload(context.Background(), artifact))
	again, err := remote.Reference(plumbing.Main, true)
	require.NoError(t, err)
	assert.Equal(t, ref.Hash(), again.Hash())
}
