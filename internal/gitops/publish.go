package gitops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
)

// CommitAndPush stages all changes in the documentation checkout and, only
// when the staged diff is non-empty, commits with the fixed bot identity and
// pushes to the branch the checkout was cloned from.
//
// An empty diff is success: the returned committed flag is false and no
// commit is created. A rejected push surfaces as PushRejectedError.
func (c *Client) CommitAndPush(ctx context.Context, repoPath string, docs appcfg.DocsConfig, message string) (hash string, committed bool, err error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", false, fmt.Errorf("failed to open docs checkout %s: %w", repoPath, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("failed to open worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", false, fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		slog.Info("No documentation changes, skipping commit", "branch", docs.Branch)
		return "", false, nil
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", false, fmt.Errorf("failed to stage changes: %w", err)
	}

	commit, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  docs.Committer.Name,
			Email: docs.Committer.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to commit: %w", err)
	}
	slog.Info("Documentation commit created",
		"branch", docs.Branch,
		"commit", shortHash(commit.String()),
		"files", len(status))

	auth, err := buildAuth(docs.Auth)
	if err != nil {
		return "", false, err
	}
	pushErr := repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin", Auth: auth})
	if pushErr != nil && !errors.Is(pushErr, git.NoErrAlreadyUpToDate) {
		return commit.String(), true, classifyPushError(docs.URL, docs.Branch, pushErr)
	}

	slog.Info("Documentation branch pushed", "branch", docs.Branch, "commit", shortHash(commit.String()))
	return commit.String(), true, nil
}
