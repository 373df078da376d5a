// Package generate runs the documentation generation stage: either the
// configured external script (a black box writing into the docs checkout) or
// the built-in Markdown renderer when no script is configured.
package generate

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/errors"
)

// Runner executes the generation stage for one pipeline run.
type Runner struct {
	cfg       appcfg.GenerateConfig
	sourceDir string
	docsDir   string
	runID     string
}

// NewRunner creates a generation runner bound to the run's checkouts.
func NewRunner(cfg appcfg.GenerateConfig, sourceDir, docsDir, runID string) *Runner {
	return &Runner{cfg: cfg, sourceDir: sourceDir, docsDir: docsDir, runID: runID}
}

// Run produces documentation into the docs checkout. Script failures are
// fatal; the caller must not commit or push after an error.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Script == "" {
		return r.renderMarkdown()
	}
	return r.runScript(ctx)
}

func (r *Runner) runScript(ctx context.Context) error {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout.Std())
		defer cancel()
	}

	script := r.cfg.Script
	if !filepath.IsAbs(script) {
		script = filepath.Join(r.sourceDir, script)
	}
	if _, err := os.Stat(script); err != nil {
		return errors.GenerateError("generation script not found").
			WithCause(err).
			WithContext("script", r.cfg.Script).
			Build()
	}

	cmd := exec.CommandContext(ctx, script)
	cmd.Dir = r.sourceDir
	cmd.Env = append(os.Environ(),
		"DOCPUB_SOURCE_DIR="+r.sourceDir,
		"DOCPUB_DOCS_DIR="+r.docsDir,
		"DOCPUB_RUN_ID="+r.runID,
	)
	for k, v := range r.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.GenerateError("failed to attach stdout").WithCause(err).Build()
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.GenerateError("failed to attach stderr").WithCause(err).Build()
	}

	slog.Info("Running generation script", "script", r.cfg.Script, "dir", r.sourceDir)
	if err := cmd.Start(); err != nil {
		return errors.GenerateError("failed to start generation script").
			WithCause(err).
			WithContext("script", r.cfg.Script).
			Build()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); streamLines(stdout, "stdout") }()
	go func() { defer wg.Done(); streamLines(stderr, "stderr") }()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		builder := errors.GenerateError("generation script failed").
			WithCause(err).
			WithContext("script", r.cfg.Script)
		if exitErr, ok := err.(*exec.ExitError); ok {
			builder.WithContext("exit_code", exitErr.ExitCode())
		}
		if ctx.Err() == context.DeadlineExceeded {
			builder.WithContext("timeout", r.cfg.Timeout.Std().String())
		}
		return builder.Build()
	}

	slog.Info("Generation script completed", "script", r.cfg.Script)
	return nil
}

// streamLines forwards script output to the log, one line per record.
func streamLines(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Info("generator: "+scanner.Text(), "stream", stream)
	}
}
