// Package pipeline orchestrates the documentation publish run: source
// checkout, docs-branch checkout, toolchain provisioning, generation, link
// check, and conditional commit/push. Stages run strictly in order; the
// first failure aborts everything after it.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/events"
	"git.home.luguber.info/inful/docpub/internal/generate"
	"git.home.luguber.info/inful/docpub/internal/gitops"
	"git.home.luguber.info/inful/docpub/internal/journal"
	"git.home.luguber.info/inful/docpub/internal/linkcheck"
	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/toolchain"
	"git.home.luguber.info/inful/docpub/internal/workspace"
)

// Runner executes publish pipeline runs.
type Runner struct {
	cfg     *appcfg.Config
	rec     metrics.Recorder
	journal *journal.Store
	events  *events.Publisher
}

// NewRunner creates a pipeline runner for the given configuration.
func NewRunner(cfg *appcfg.Config) *Runner {
	return &Runner{cfg: cfg, rec: metrics.NoopRecorder{}}
}

// WithMetrics attaches a metrics recorder (fluent helper).
func (r *Runner) WithMetrics(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.rec = rec
	}
	return r
}

// WithJournal attaches a run journal; nil keeps journaling disabled.
func (r *Runner) WithJournal(j *journal.Store) *Runner { r.journal = j; return r }

// WithEvents attaches an event publisher; nil keeps events disabled.
func (r *Runner) WithEvents(p *events.Publisher) *Runner { r.events = p; return r }

// Run executes one pipeline run. The returned Result is always non-nil and
// already journaled; err is the first fatal stage error, if any.
func (r *Runner) Run(ctx context.Context, trigger string) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	slog.Info("Pipeline run starting", "run_id", result.RunID, "trigger", trigger)
	r.events.Publish(events.EventRunStarted, map[string]string{"run_id": result.RunID, "trigger": trigger})

	err := r.execute(ctx, result)
	return result, r.finalize(ctx, result, err)
}

func (r *Runner) execute(ctx context.Context, result *Result) error {
	ws := r.newWorkspace()
	if err := ws.Create(); err != nil {
		return err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup workspace", "error", err)
		}
	}()

	client := gitops.NewClient(ws.Path())

	var sourceDir, docsDir string

	if err := r.runStage(result, StageCheckout, func() error {
		dir, err := client.CloneSource(ctx, r.cfg.Source)
		if err != nil {
			return err
		}
		sourceDir = dir
		if hash, err := client.HeadHash(dir); err == nil {
			result.SourceCommit = hash
		}
		return nil
	}); err != nil {
		return err
	}

	if err := r.runStage(result, StageDocsCheckout, func() error {
		dir, err := client.CloneDocsBranch(ctx, r.cfg.Docs)
		if err != nil {
			return err
		}
		docsDir = dir
		return nil
	}); err != nil {
		return err
	}

	if r.cfg.Toolchain.Enabled() {
		if err := r.runStage(result, StageToolchain, func() error {
			return toolchain.New(r.cfg.Toolchain).Ensure(ctx)
		}); err != nil {
			return err
		}
	} else {
		r.skipStage(result, StageToolchain)
	}

	if err := r.runStage(result, StageGenerate, func() error {
		return generate.NewRunner(r.cfg.Generate, sourceDir, docsDir, result.RunID).Run(ctx)
	}); err != nil {
		return err
	}

	if r.cfg.Generate.LinkCheck {
		r.runLinkCheck(result, docsDir)
	}

	return r.runStage(result, StagePublish, func() error {
		message := renderMessage(r.cfg.Docs.Message, result.SourceCommit)
		hash, committed, err := client.CommitAndPush(ctx, docsDir, r.cfg.Docs, message)
		if err != nil {
			r.rec.IncPushFailure()
			return err
		}
		result.CommitHash = hash
		result.Committed = committed
		if committed {
			r.rec.IncPublishCommit()
		}
		return nil
	})
}

// runStage times a stage, records its metrics and result, and returns its
// error unchanged.
func (r *Runner) runStage(result *Result, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.rec.ObserveStageDuration(name, elapsed)

	stage := StageResult{Name: name, Status: StageSuccess, Duration: elapsed}
	label := metrics.ResultSuccess
	if err != nil {
		stage.Status = StageFailed
		stage.Error = err.Error()
		label = metrics.ResultFatal
	}
	r.rec.IncStageResult(name, label)
	result.Stages = append(result.Stages, stage)

	r.events.Publish(events.EventStageFinished, map[string]any{
		"run_id": result.RunID,
		"stage":  name,
		"status": string(stage.Status),
	})
	if err != nil {
		slog.Error("Pipeline stage failed", "run_id", result.RunID, "stage", name, "error", err)
	} else {
		slog.Debug("Pipeline stage finished", "run_id", result.RunID, "stage", name, "duration", elapsed)
	}
	return err
}

func (r *Runner) skipStage(result *Result, name string) {
	result.Stages = append(result.Stages, StageResult{Name: name, Status: StageSkipped})
	r.rec.IncStageResult(name, metrics.ResultSkipped)
}

// runLinkCheck is warn-only: broken links and scan errors never fail the run.
func (r *Runner) runLinkCheck(result *Result, docsDir string) {
	start := time.Now()
	report, err := linkcheck.Verify(docsDir)
	elapsed := time.Since(start)
	r.rec.ObserveStageDuration(StageLinkCheck, elapsed)

	stage := StageResult{Name: StageLinkCheck, Status: StageSuccess, Duration: elapsed}
	switch {
	case err != nil:
		stage.Status = StageWarning
		stage.Error = err.Error()
		r.rec.IncStageResult(StageLinkCheck, metrics.ResultWarning)
		slog.Warn("Link check could not complete", "run_id", result.RunID, "error", err)
	case report.Broken():
		stage.Status = StageWarning
		result.LinkIssues = len(report.Issues)
		r.rec.IncStageResult(StageLinkCheck, metrics.ResultWarning)
		for _, issue := range report.Issues {
			slog.Warn("Broken link in generated docs", "run_id", result.RunID, "file", issue.File, "target", issue.Target)
		}
	default:
		r.rec.IncStageResult(StageLinkCheck, metrics.ResultSuccess)
		slog.Debug("Link check passed", "run_id", result.RunID, "links", report.LinksChecked)
	}
	result.Stages = append(result.Stages, stage)
}

func (r *Runner) finalize(ctx context.Context, result *Result, err error) error {
	result.FinishedAt = time.Now()
	result.Status = "success"
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
	}

	r.rec.ObserveRunDuration(result.Duration())
	r.rec.IncRunOutcome(result.Trigger, result.Status)

	if jerr := r.journal.Append(ctx, journalEntry(result)); jerr != nil {
		slog.Warn("Failed to journal run", "run_id", result.RunID, "error", jerr)
	}
	r.events.Publish(events.EventRunFinished, result)

	if err != nil {
		slog.Error("Pipeline run failed", "run_id", result.RunID, "duration", result.Duration(), "error", err)
	} else {
		slog.Info("Pipeline run finished",
			"run_id", result.RunID,
			"duration", result.Duration(),
			"committed", result.Committed,
			"commit", shortHash(result.CommitHash))
	}
	return err
}

func (r *Runner) newWorkspace() *workspace.Manager {
	if r.cfg.Workspace.Persistent && r.cfg.Workspace.Dir != "" {
		return workspace.NewPersistentManager(r.cfg.Workspace.Dir)
	}
	return workspace.NewManager(r.cfg.Workspace.Dir)
}

func journalEntry(result *Result) journal.Entry {
	stages := make([]journal.StageRecord, 0, len(result.Stages))
	for _, s := range result.Stages {
		stages = append(stages, journal.StageRecord{
			Name:       s.Name,
			Status:     string(s.Status),
			DurationMS: s.Duration.Milliseconds(),
		})
	}
	return journal.Entry{
		RunID:      result.RunID,
		Trigger:    result.Trigger,
		Status:     result.Status,
		Committed:  result.Committed,
		CommitHash: result.CommitHash,
		Stages:     stages,
		Error:      result.Error,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
}

// renderMessage expands the {commit} placeholder with the short source hash.
func renderMessage(template, sourceCommit string) string {
	return strings.ReplaceAll(template, "{commit}", shortHash(sourceCommit))
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
