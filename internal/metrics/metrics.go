package metrics

import (
	"context"
	"time"

	"outreach/internal/events"
	"outreach/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "outreach"

// Recorder holds the metrics of one process. A batch job has no scrape
// endpoint, so the registry is pushed to a Pushgateway at exit.
type Recorder struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	assigned     *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Task runs by task and outcome.",
			},
			[]string{"task", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of task runs.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"task"},
		),
		assigned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leads_assigned_total",
				Help:      "Backlog rows assigned per destination.",
			},
			[]string{"destination"},
		),
		sendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "send_failures_total",
				Help:      "Failed chat messages by task and error code.",
			},
			[]string{"task", "code"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run per task.",
			},
			[]string{"task"},
		),
	}
	r.registry.MustRegister(r.runs, r.runDuration, r.assigned, r.sendFailures, r.lastSuccess)
	return r
}

func (r *Recorder) ObserveRun(task, status string, duration time.Duration) {
	r.runs.WithLabelValues(task, status).Inc()
	r.runDuration.WithLabelValues(task).Observe(duration.Seconds())
	if status != models.RunStatusFailed {
		r.lastSuccess.WithLabelValues(task).SetToCurrentTime()
	}
}

func (r *Recorder) AddAssigned(dest string, n int) {
	r.assigned.WithLabelValues(dest).Add(float64(n))
}

func (r *Recorder) IncSendFailure(task, code string) {
	r.sendFailures.WithLabelValues(task, code).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(r.registry).PushContext(ctx)
}

// OnRunFinished counts a finished run.
func (r *Recorder) OnRunFinished(_ context.Context, e *events.Event) error {
	var p events.RunFinishedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	if p.Result == nil {
		return nil
	}
	r.ObserveRun(p.Result.Task, p.Status, p.Result.FinishedAt.Sub(p.Result.StartedAt))
	return nil
}

// OnBatchCommitted adds the rows each destination received.
func (r *Recorder) OnBatchCommitted(_ context.Context, e *events.Event) error {
	var p events.BatchCommittedPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	for _, a := range p.Batch.Assignments {
		r.AddAssigned(a.Destination.Name, a.Len())
	}
	return nil
}
