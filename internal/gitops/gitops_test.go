package gitops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
	apperrors "git.home.luguber.info/inful/docpub/internal/errors"
)

// initRemote creates a bare repository with a single branch seeded from the
// given files and returns its path, usable as a clone/push URL.
func initRemote(t *testing.T, branch string, files map[string]string) string {
	t.Helper()

	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err, "init bare remote")

	seed := filepath.Join(t.TempDir(), "seed")
	repo, err := git.PlainInitWithOptions(seed, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	require.NoError(t, err, "init seed repo")

	for name, content := range files {
		path := filepath.Join(seed, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	w, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, w.AddGlob("."))
	_, err = w.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	spec := gitcfg.RefSpec("refs/heads/" + branch + ":refs/heads/" + branch)
	require.NoError(t, repo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []gitcfg.RefSpec{spec}}))

	return bare
}

func remoteBranchHash(t *testing.T, remotePath, branch string) string {
	t.Helper()
	repo, err := git.PlainOpen(remotePath)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	return ref.Hash().String()
}

func TestCloneSourceAndHeadHash(t *testing.T) {
	remote := initRemote(t, "main", map[string]string{"README.md": "# hello\n"})
	client := NewClient(t.TempDir())

	path, err := client.CloneSource(context.Background(), appcfg.SourceConfig{URL: remote, Ref: "main"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, "README.md"))

	hash, err := client.HeadHash(path)
	require.NoError(t, err)
	assert.Len(t, hash, 40)
	assert.Equal(t, remoteBranchHash(t, remote, "main"), hash)
}

func TestCloneDocsBranchMissingIsFatal(t *testing.T) {
	remote := initRemote(t, "main", map[string]string{"README.md": "x"})
	client := NewClient(t.TempDir())

	_, err := client.CloneDocsBranch(context.Background(), appcfg.DocsConfig{
		URL: remote, Branch: "docs", Dir: "docs-site",
	})
	require.Error(t, err)

	var missing *BranchMissingError
	assert.True(t, errors.As(err, &missing), "expected BranchMissingError, got %T: %v", err, err)
	assert.Equal(t, apperrors.CategoryGit, apperrors.CategoryOf(err))
}

func TestCommitAndPushPublishesChanges(t *testing.T) {
	remote := initRemote(t, "docs", map[string]string{"index.html": "<html>old</html>"})
	docs := appcfg.DocsConfig{
		URL: remote, Branch: "docs", Dir: "docs-site",
		Committer: appcfg.Identity{Name: "docpub bot", Email: "docpub@example.com"},
	}

	client := NewClient(t.TempDir())
	path, err := client.CloneDocsBranch(context.Background(), docs)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(path, "index.html"), []byte("<html>new</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(path, "api.html"), []byte("<html>api</html>"), 0o600))

	hash, committed, err := client.CommitAndPush(context.Background(), path, docs, "docs: regenerate")
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, hash, remoteBranchHash(t, remote, "docs"), "remote branch should point at the published commit")

	// Verify the fixed bot identity on the published commit.
	repo, err := git.PlainOpen(path)
	require.NoError(t, err)
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	require.NoError(t, err)
	assert.Equal(t, "docpub bot", commit.Author.Name)
	assert.Equal(t, "docpub@example.com", commit.Author.Email)
}

func TestCommitAndPushEmptyDiffIsSuccess(t *testing.T) {
	remote := initRemote(t, "docs", map[string]string{"index.html": "<html>same</html>"})
	docs := appcfg.DocsConfig{
		URL: remote, Branch: "docs", Dir: "docs-site",
		Committer: appcfg.Identity{Name: "docpub bot", Email: "docpub@example.com"},
	}

	client := NewClient(t.TempDir())
	path, err := client.CloneDocsBranch(context.Background(), docs)
	require.NoError(t, err)

	before := remoteBranchHash(t, remote, "docs")
	hash, committed, err := client.CommitAndPush(context.Background(), path, docs, "docs: regenerate")
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Empty(t, hash)
	assert.Equal(t, before, remoteBranchHash(t, remote, "docs"), "remote must be untouched")
}

func TestPushRejectedOnDivergedRemote(t *testing.T) {
	remote := initRemote(t, "docs", map[string]string{"index.html": "<html>v1</html>"})
	docs := appcfg.DocsConfig{
		URL: remote, Branch: "docs", Dir: "docs-site",
		Committer: appcfg.Identity{Name: "docpub bot", Email: "docpub@example.com"},
	}

	clientA := NewClient(t.TempDir())
	pathA, err := clientA.CloneDocsBranch(context.Background(), docs)
	require.NoError(t, err)

	clientB := NewClient(t.TempDir())
	pathB, err := clientB.CloneDocsBranch(context.Background(), docs)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(pathA, "index.html"), []byte("<html>v2</html>"), 0o600))
	_, _, err = clientA.CommitAndPush(context.Background(), pathA, docs, "first writer")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(pathB, "index.html"), []byte("<html>v3</html>"), 0o600))
	_, _, err = clientB.CommitAndPush(context.Background(), pathB, docs, "second writer")
	require.Error(t, err)

	var rejected *PushRejectedError
	assert.True(t, errors.As(err, &rejected), "expected PushRejectedError, got %T: %v", err, err)
	assert.Equal(t, apperrors.CategoryPublish, apperrors.CategoryOf(err))
}
