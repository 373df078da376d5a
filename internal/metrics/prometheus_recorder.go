package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	runDuration    prom.Histogram
	stageResults   *prom.CounterVec
	runOutcomes    *prom.CounterVec
	publishCommits prom.Counter
	pushFailures   prom.Counter
}

// NewPrometheusRecorder constructs and registers the pipeline metrics on the
// given registry (a fresh private registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpub",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docpub",
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpub",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpub",
			Name:      "runs_total",
			Help:      "Pipeline runs by trigger and final outcome",
		}, []string{"trigger", "outcome"}),
		publishCommits: prom.NewCounter(prom.CounterOpts{
			Namespace: "docpub",
			Name:      "publish_commits_total",
			Help:      "Commits published to the documentation branch",
		}),
		pushFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: "docpub",
			Name:      "push_failures_total",
			Help:      "Rejected or failed pushes to the documentation branch",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcomes, pr.publishCommits, pr.pushFailures)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(trigger, outcome string) {
	p.runOutcomes.WithLabelValues(trigger, outcome).Inc()
}

func (p *PrometheusRecorder) IncPublishCommit() { p.publishCommits.Inc() }

func (p *PrometheusRecorder) IncPushFailure() { p.pushFailures.Inc() }
