package gitops

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docpub/internal/errors"
)

// Typed git errors enabling structured classification without string parsing
// upstream.

// AuthError indicates the remote rejected our credentials.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the remote repository does not exist.
type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// BranchMissingError indicates the remote exists but lacks the requested branch.
type BranchMissingError struct {
	URL, Branch string
	Err         error
}

func (e *BranchMissingError) Error() string {
	return fmt.Sprintf("branch %q missing on %s: %v", e.Branch, e.URL, e.Err)
}
func (e *BranchMissingError) Unwrap() error { return e.Err }

// PushRejectedError indicates a non-fast-forward push rejection. The remote
// branch moved since the checkout; the run fails without retry.
type PushRejectedError struct {
	URL, Branch string
	Err         error
}

func (e *PushRejectedError) Error() string {
	return fmt.Sprintf("push rejected for %s@%s: %v", e.URL, e.Branch, e.Err)
}
func (e *PushRejectedError) Unwrap() error { return e.Err }

// classifyCloneError wraps go-git clone failures into a classified error whose
// cause is a typed variant when the underlying error is recognizable.
func classifyCloneError(url, branch string, err error) error {
	l := strings.ToLower(err.Error())
	cause := err
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password") || strings.Contains(l, "authorization"):
		cause = &AuthError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "couldn't find remote ref") || strings.Contains(l, "reference not found") || strings.Contains(l, "no matching"):
		cause = &BranchMissingError{URL: url, Branch: branch, Err: err}
	case strings.Contains(l, "repository not found") || strings.Contains(l, "repository does not exist") || strings.Contains(l, "not found"):
		cause = &NotFoundError{Op: "clone", URL: url, Err: err}
	}
	return errors.GitError("clone failed").Fatal().
		WithCause(cause).
		WithContext("url", url).
		WithContext("branch", branch).
		Build()
}

// classifyPushError wraps push failures, surfacing non-fast-forward
// rejections as PushRejectedError under a publish-classified error.
func classifyPushError(url, branch string, err error) error {
	l := strings.ToLower(err.Error())
	cause := err
	switch {
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "fetch first") || strings.Contains(l, "cannot lock ref"):
		cause = &PushRejectedError{URL: url, Branch: branch, Err: err}
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization"):
		cause = &AuthError{Op: "push", URL: url, Err: err}
	}
	return errors.PublishError("push failed").
		WithCause(cause).
		WithContext("url", url).
		WithContext("branch", branch).
		Build()
}
