package gitops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
)

// Client performs git operations inside a workspace directory.
type Client struct {
	workspaceDir string
}

// NewClient creates a new git client rooted at the given workspace directory.
func NewClient(workspaceDir string) *Client { return &Client{workspaceDir: workspaceDir} }

// CloneSource clones the source repository at its configured ref into the
// workspace and returns the checkout path.
func (c *Client) CloneSource(ctx context.Context, src appcfg.SourceConfig) (string, error) {
	path := filepath.Join(c.workspaceDir, "source")
	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("failed to remove existing source checkout: %w", err)
	}

	opts := &git.CloneOptions{
		URL:           src.URL,
		ReferenceName: plumbing.NewBranchReferenceName(src.Ref),
		SingleBranch:  true,
	}
	if src.ShallowDepth > 0 {
		opts.Depth = src.ShallowDepth
	}
	auth, err := buildAuth(src.Auth)
	if err != nil {
		return "", err
	}
	opts.Auth = auth

	slog.Debug("Cloning source repository", "url", src.URL, "ref", src.Ref, "path", path)
	repo, err := git.PlainCloneContext(ctx, path, false, opts)
	if err != nil {
		return "", classifyCloneError(src.URL, src.Ref, err)
	}
	if ref, herr := repo.Head(); herr == nil {
		slog.Info("Source repository cloned", "url", src.URL, "ref", src.Ref, "commit", shortHash(ref.Hash().String()))
	} else {
		slog.Info("Source repository cloned", "url", src.URL, "ref", src.Ref)
	}
	return path, nil
}

// CloneDocsBranch clones exactly the documentation branch into its named
// workspace subdirectory. A missing branch is a BranchMissingError; nothing
// after this stage runs in that case.
func (c *Client) CloneDocsBranch(ctx context.Context, docs appcfg.DocsConfig) (string, error) {
	path := filepath.Join(c.workspaceDir, docs.Dir)
	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("failed to remove existing docs checkout: %w", err)
	}

	auth, err := buildAuth(docs.Auth)
	if err != nil {
		return "", err
	}
	opts := &git.CloneOptions{
		URL:           docs.URL,
		ReferenceName: plumbing.NewBranchReferenceName(docs.Branch),
		SingleBranch:  true,
		Auth:          auth,
	}

	slog.Debug("Cloning documentation branch", "url", docs.URL, "branch", docs.Branch, "path", path)
	if _, err := git.PlainCloneContext(ctx, path, false, opts); err != nil {
		return "", classifyCloneError(docs.URL, docs.Branch, err)
	}
	slog.Info("Documentation branch cloned", "url", docs.URL, "branch", docs.Branch, "path", path)
	return path, nil
}

// HeadHash returns the full hash of HEAD in the given checkout.
func (c *Client) HeadHash(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository %s: %w", repoPath, err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD of %s: %w", repoPath, err)
	}
	return ref.Hash().String(), nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
