package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/daemon"
	"git.home.luguber.info/inful/docpub/internal/errors"
	"git.home.luguber.info/inful/docpub/internal/journal"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
	"git.home.luguber.info/inful/docpub/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docpub.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
		Trigger   string `help:"Trigger label recorded for this run" default:"cli"`
		Workspace string `short:"w" help:"Override the workspace base directory"`
	} `cmd:"" help:"Run the publish pipeline once and exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct {
	} `cmd:"" help:"Run continuously, publishing on webhook pushes and schedule"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"20"`
	} `cmd:"" help:"Show recent pipeline runs from the journal"`

	Version struct {
	} `cmd:"" help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "run":
		cfg := loadConfig()
		if CLI.Run.Workspace != "" {
			cfg.Workspace.Dir = CLI.Run.Workspace
		}
		if err := runOnce(cfg, CLI.Run.Trigger); err != nil {
			logError("Run failed", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			logError("Init failed", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	case "daemon":
		cfg := loadConfig()
		if err := runDaemon(cfg); err != nil {
			logError("Daemon failed", err)
			os.Exit(1)
		}
	case "history":
		cfg := loadConfig()
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			logError("History failed", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("docpub %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		logError("Failed to load configuration", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)
	return cfg
}

// logError logs classified errors with their structured attributes; plain
// errors fall back to a single error field.
func logError(msg string, err error) {
	if ce, ok := errors.AsClassified(err); ok {
		attrs := append([]slog.Attr{slog.String("error", ce.Message())}, ce.LogAttrs()...)
		slog.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
		return
	}
	slog.Error(msg, "error", err)
}

// setupLogging applies the configured format and level; -v always wins on level.
func setupLogging(lc config.LoggingConfig) {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runOnce(cfg *config.Config, trigger string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := pipeline.NewRunner(cfg)
	if cfg.Daemon != nil && cfg.Daemon.JournalPath != "" {
		store, err := journal.Open(cfg.Daemon.JournalPath)
		if err != nil {
			slog.Warn("Run journal unavailable", "path", cfg.Daemon.JournalPath, "error", err)
		} else {
			defer store.Close()
			runner = runner.WithJournal(store)
		}
	}

	result, err := runner.Run(ctx, trigger)
	if err != nil {
		return err
	}
	if result.Committed {
		slog.Info("Documentation published", "commit", result.CommitHash)
	} else {
		slog.Info("Documentation already up to date, nothing published")
	}
	return nil
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	return nil
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.Daemon == nil || cfg.Daemon.JournalPath == "" {
		return fmt.Errorf("no journal_path configured in the daemon section")
	}

	store, err := journal.Open(cfg.Daemon.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, e := range entries {
		fmt.Println(formatHistoryLine(e))
	}
	return nil
}

func formatHistoryLine(e journal.Entry) string {
	line := fmt.Sprintf("%s  %-8s %-8s committed=%-5t",
		e.StartedAt.Format(time.RFC3339), e.Trigger, e.Status, e.Committed)
	if e.CommitHash != "" {
		line += "  " + shortHash(e.CommitHash)
	}
	if e.Error != "" {
		line += "  error: " + e.Error
	}
	return line
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
