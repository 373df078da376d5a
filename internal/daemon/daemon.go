// Package daemon implements the long-running mode: webhook and schedule
// triggered pipeline runs, strictly serialized so concurrent triggers can
// never race on the documentation branch.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/errors"
	"git.home.luguber.info/inful/docpub/internal/events"
	"git.home.luguber.info/inful/docpub/internal/journal"
	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
)

// Daemon runs the publish pipeline on webhook and schedule triggers.
type Daemon struct {
	cfg        *appcfg.Config
	configPath string

	runner   *pipeline.Runner
	journal  *journal.Store
	events   *events.Publisher
	registry *prom.Registry

	httpServer *http.Server
	scheduler  *Scheduler
	watcher    *ConfigWatcher

	// triggerCh has capacity one: triggers arriving while a run is active
	// coalesce into at most one queued follow-up run.
	triggerCh chan string

	mu            sync.RWMutex
	running       bool
	lastRun       *pipeline.Result
	reloadPending bool
}

// New assembles a daemon from the configuration. The configuration must have
// a daemon section.
func New(cfg *appcfg.Config, configPath string) (*Daemon, error) {
	if cfg.Daemon == nil {
		return nil, errors.ConfigError("configuration has no daemon section").Build()
	}

	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		triggerCh:  make(chan string, 1),
	}

	if cfg.Daemon.JournalPath != "" {
		store, err := journal.Open(cfg.Daemon.JournalPath)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "failed to open run journal").
				WithContext("path", cfg.Daemon.JournalPath).
				Build()
		}
		d.journal = store
	}

	if cfg.Daemon.NATSURL != "" {
		pub, err := events.Connect(cfg.Daemon.NATSURL, cfg.Daemon.NATSSubject)
		if err != nil {
			if cerr := d.journal.Close(); cerr != nil {
				slog.Warn("Journal close failed", "error", cerr)
			}
			return nil, err
		}
		d.events = pub
	}

	rec := metrics.Recorder(metrics.NoopRecorder{})
	if cfg.Daemon.Metrics {
		d.registry = prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(d.registry)
	}

	d.runner = pipeline.NewRunner(cfg).
		WithMetrics(rec).
		WithJournal(d.journal).
		WithEvents(d.events)

	return d, nil
}

// Start runs the daemon until the context is canceled or a component fails.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("Daemon starting",
		"listen", d.cfg.Daemon.Listen,
		"webhook_path", d.cfg.Daemon.WebhookPath,
		"watch_branch", d.cfg.Daemon.WatchBranch)

	go d.runLoop(ctx)

	if d.cfg.Daemon.ScheduleEvery > 0 {
		sched, err := NewScheduler(d.cfg.Daemon.ScheduleEvery.Std(), func() { d.Trigger("schedule") })
		if err != nil {
			return err
		}
		d.scheduler = sched
		d.scheduler.Start()
	}

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.markReloadPending)
		if err != nil {
			slog.Warn("Config watcher unavailable", "error", err)
		} else {
			d.watcher = watcher
			if err := d.watcher.Start(ctx); err != nil {
				slog.Warn("Config watcher failed to start", "error", err)
			}
		}
	}

	d.httpServer = &http.Server{
		Addr:         d.cfg.Daemon.Listen,
		Handler:      d.mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.InternalError("http server failed").
			WithCause(err).
			WithContext("listen", d.cfg.Daemon.Listen).
			Build()
	case <-ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Daemon stopping")

	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown failed", "error", err)
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", "error", err)
		}
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.events.Close()
	if err := d.journal.Close(); err != nil {
		slog.Warn("Journal close failed", "error", err)
	}

	slog.Info("Daemon stopped")
	return nil
}

// Trigger enqueues a pipeline run. Triggers arriving while the queue is full
// coalesce; the return value reports whether a new run was queued.
func (d *Daemon) Trigger(source string) bool {
	select {
	case d.triggerCh <- source:
		slog.Info("Pipeline run queued", "trigger", source)
		return true
	default:
		slog.Info("Pipeline run already queued, coalescing trigger", "trigger", source)
		return false
	}
}

// runLoop consumes triggers one at a time; runs never overlap.
func (d *Daemon) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-d.triggerCh:
			d.setRunning(true)
			result, err := d.runner.Run(ctx, trigger)
			if err != nil {
				slog.Error("Triggered run failed", "trigger", trigger, "error", err)
			}
			d.setLastRun(result)
			d.setRunning(false)
			d.pruneJournal(ctx)
		}
	}
}

func (d *Daemon) setRunning(v bool) {
	d.mu.Lock()
	d.running = v
	d.mu.Unlock()
}

func (d *Daemon) setLastRun(r *pipeline.Result) {
	d.mu.Lock()
	d.lastRun = r
	d.mu.Unlock()
}

// pruneJournal drops journaled runs older than the retention window.
func (d *Daemon) pruneJournal(ctx context.Context) {
	if d.journal == nil || d.cfg.Daemon.JournalRetention <= 0 {
		return
	}
	cutoff := time.Now().Add(-d.cfg.Daemon.JournalRetention.Std())
	deleted, err := d.journal.Prune(ctx, cutoff)
	if err != nil {
		slog.Warn("Failed to prune run journal", "error", err)
		return
	}
	if deleted > 0 {
		slog.Debug("Pruned run journal", "deleted", deleted, "cutoff", cutoff)
	}
}

func (d *Daemon) markReloadPending() {
	d.mu.Lock()
	d.reloadPending = true
	d.mu.Unlock()
	slog.Warn("Configuration file changed on disk, restart the daemon to apply", "path", d.configPath)
}
