// Package toolchain provisions the documentation generator toolchain before
// a run: interpreter lookup plus package installation via the configured
// installer command.
package toolchain

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/errors"
)

// Provisioner ensures the generator toolchain is available.
type Provisioner struct {
	cfg appcfg.ToolchainConfig
}

// New creates a provisioner for the given toolchain configuration.
func New(cfg appcfg.ToolchainConfig) *Provisioner { return &Provisioner{cfg: cfg} }

// Ensure verifies the interpreter and installs the configured packages. Any
// failure is fatal to the run. An empty configuration is a no-op.
func (p *Provisioner) Ensure(ctx context.Context) error {
	if !p.cfg.Enabled() {
		slog.Debug("Toolchain provisioning not configured, skipping")
		return nil
	}

	if p.cfg.Interpreter != "" {
		path, err := exec.LookPath(p.cfg.Interpreter)
		if err != nil {
			return errors.ToolchainError("interpreter not found on PATH").
				WithCause(err).
				WithContext("interpreter", p.cfg.Interpreter).
				Build()
		}
		slog.Debug("Interpreter resolved", "interpreter", p.cfg.Interpreter, "path", path)
	}

	if len(p.cfg.Packages) == 0 {
		return nil
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout.Std())
		defer cancel()
	}

	argv := append(append([]string{}, p.cfg.Installer...), p.cfg.Packages...)
	slog.Info("Installing generator packages", "command", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.ToolchainError("package installation failed").
			WithCause(err).
			WithContext("command", strings.Join(argv, " ")).
			WithContext("output", tail(string(output), 2048)).
			Build()
	}
	slog.Info("Generator packages installed", "packages", p.cfg.Packages)
	return nil
}

// tail returns at most n trailing bytes of s, for error context.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
