package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/journal"
	"git.home.luguber.info/inful/docpub/internal/metrics"
)

type seedFile struct {
	content string
	mode    os.FileMode
}

// initRemote creates a bare repository seeded with one commit on the given
// branch and returns its path.
func initRemote(t *testing.T, branch string, files map[string]seedFile) string {
	t.Helper()

	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	seed := filepath.Join(t.TempDir(), "seed")
	repo, err := git.PlainInitWithOptions(seed, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	require.NoError(t, err)

	for name, f := range files {
		path := filepath.Join(seed, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		mode := f.mode
		if mode == 0 {
			mode = 0o600
		}
		require.NoError(t, os.WriteFile(path, []byte(f.content), mode))
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

func testConfig(t *testing.T, sourceRemote, docsRemote string) *appcfg.Config {
	t.Helper()
	return &appcfg.Config{
		Source: appcfg.SourceConfig{URL: sourceRemote, Ref: "main"},
		Docs: appcfg.DocsConfig{
			URL: docsRemote, Branch: "docs", Dir: "docs-site",
			Committer: appcfg.Identity{Name: "docpub bot", Email: "docpub@example.com"},
			Message:   "docs: regenerate from {commit}",
		},
		Workspace: appcfg.WorkspaceConfig{Dir: t.TempDir()},
	}
}

func stageByName(result *Result, name string) *StageResult {
	for i := range result.Stages {
		if result.Stages[i].Name == name {
			return &result.Stages[i]
		}
	}
	return nil
}

func TestRunPublishesAndIsIdempotent(t *testing.T) {
	sourceRemote := initRemote(t, "main", map[string]seedFile{
		"README.md": {content: "# project\n"},
		"docs.sh": {
			content: "#!/bin/sh\necho \"<html>generated</html>\" > \"$DOCPUB_DOCS_DIR/index.html\"\n",
			mode:    0o700,
		},
	})
	docsRemote := initRemote(t, "docs", map[string]seedFile{
		"index.html": {content: "<html>old</html>"},
	})

	cfg := testConfig(t, sourceRemote, docsRemote)
	cfg.Generate.Script = "docs.sh"

	runner := NewRunner(cfg)
	result, err := runner.Run(context.Background(), "cli")
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.True(t, result.Committed)
	assert.Len(t, result.SourceCommit, 40)
	assert.Equal(t, result.CommitHash, remoteBranchHash(t, docsRemote, "docs"),
		"documentation branch must point at the published commit")

	publish := stageByName(result, StagePublish)
	require.NotNil(t, publish)
	assert.Equal(t, StageSuccess, publish.Status)

	// The published commit carries the bot identity and the templated message.
	repo, err := git.PlainOpen(docsRemote)
	require.NoError(t, err)
	commit, err := repo.CommitObject(plumbing.NewHash(result.CommitHash))
	require.NoError(t, err)
	assert.Equal(t, "docpub bot", commit.Author.Name)
	assert.Contains(t, commit.Message, result.SourceCommit[:8])

	// Second run over identical source state publishes nothing.
	second, err := runner.Run(context.Background(), "cli")
	require.NoError(t, err)
	assert.Equal(t, "success", second.Status)
	assert.False(t, second.Committed)
	assert.Empty(t, second.CommitHash)
	assert.Equal(t, result.CommitHash, remoteBranchHash(t, docsRemote, "docs"),
		"second run must not move the documentation branch")
}

func TestGenerateFailureBlocksPublish(t *testing.T) {
	sourceRemote := initRemote(t, "main", map[string]seedFile{
		"docs.sh": {content: "#!/bin/sh\necho boom >&2\nexit 1\n", mode: 0o700},
	})
	docsRemote := initRemote(t, "docs", map[string]seedFile{
		"index.html": {content: "<html>old</html>"},
	})
	before := remoteBranchHash(t, docsRemote, "docs")

	cfg := testConfig(t, sourceRemote, docsRemote)
	cfg.Generate.Script = "docs.sh"

	result, err := NewRunner(cfg).Run(context.Background(), "cli")
	require.Error(t, err)

	assert.Equal(t, "failed", result.Status)
	gen := stageByName(result, StageGenerate)
	require.NotNil(t, gen)
	assert.Equal(t, StageFailed, gen.Status)
	assert.Nil(t, stageByName(result, StagePublish), "publish must not run after a generation failure")
	assert.Equal(t, before, remoteBranchHash(t, docsRemote, "docs"), "no commit may reach the remote")
}

func TestMissingDocsBranchAbortsEarly(t *testing.T) {
	sourceRemote := initRemote(t, "main", map[string]seedFile{
		"README.md": {content: "# project\n"},
	})
	// The docs remote only has main; the configured docs branch is absent.
	docsRemote := initRemote(t, "main", map[string]seedFile{
		"README.md": {content: "x"},
	})

	cfg := testConfig(t, sourceRemote, docsRemote)
	result, err := NewRunner(cfg).Run(context.Background(), "cli")
	require.Error(t, err)

	dc := stageByName(result, StageDocsCheckout)
	require.NotNil(t, dc)
	assert.Equal(t, StageFailed, dc.Status)
	assert.Nil(t, stageByName(result, StageToolchain), "nothing after the docs checkout may run")
	assert.Nil(t, stageByName(result, StageGenerate))
	assert.Nil(t, stageByName(result, StagePublish))
}

func TestFallbackRenderWithJournalAndMetrics(t *testing.T) {
	sourceRemote := initRemote(t, "main", map[string]seedFile{
		"README.md": {content: "# Fallback\n\nrendered without a script\n"},
	})
	docsRemote := initRemote(t, "docs", map[string]seedFile{
		"keep.txt": {content: "keep"},
	})

	store, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	cfg := testConfig(t, sourceRemote, docsRemote)
	cfg.Generate.LinkCheck = true

	result, err := NewRunner(cfg).WithJournal(store).WithMetrics(rec).Run(context.Background(), "schedule")
	require.NoError(t, err)
	assert.True(t, result.Committed)

	entries, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.RunID, entries[0].RunID)
	assert.Equal(t, "schedule", entries[0].Trigger)
	assert.Equal(t, "success", entries[0].Status)
	assert.True(t, entries[0].Committed)

	lc := stageByName(result, StageLinkCheck)
	require.NotNil(t, lc, "link check stage should run when enabled")
}

func TestToolchainStageSkippedWhenUnconfigured(t *testing.T) {
	sourceRemote := initRemote(t, "main", map[string]seedFile{
		"README.md": {content: "# x\n"},
	})
	docsRemote := initRemote(t, "docs", map[string]seedFile{
		"keep.txt": {content: "keep"},
	})

	cfg := testConfig(t, sourceRemote, docsRemote)
	result, err := NewRunner(cfg).Run(context.Background(), "cli")
	require.NoError(t, err)

	tc := stageByName(result, StageToolchain)
	require.NotNil(t, tc)
	assert.Equal(t, StageSkipped, tc.Status)
}

func TestRenderMessage(t *testing.T) {
	got := renderMessage("docs: regenerate from {commit}", "0123456789abcdef")
	assert.Equal(t, "docs: regenerate from 01234567", got)
}
