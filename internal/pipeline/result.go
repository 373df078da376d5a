package pipeline

import "time"

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
	StageWarning StageStatus = "warning"
)

// Stage names in execution order.
const (
	StageCheckout     = "checkout"
	StageDocsCheckout = "docs-checkout"
	StageToolchain    = "toolchain"
	StageGenerate     = "generate"
	StageLinkCheck    = "linkcheck"
	StagePublish      = "publish"
)

// StageResult records one executed stage.
type StageResult struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID        string        `json:"run_id"`
	Trigger      string        `json:"trigger"`
	Status       string        `json:"status"` // success|failed
	SourceCommit string        `json:"source_commit,omitempty"`
	Committed    bool          `json:"committed"`
	CommitHash   string        `json:"commit_hash,omitempty"`
	LinkIssues   int           `json:"link_issues,omitempty"`
	Error        string        `json:"error,omitempty"`
	Stages       []StageResult `json:"stages"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Duration returns the total run duration.
func (r *Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
