// Package metrics records workflow activity as Prometheus metrics.
package metrics

import (
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is a workflow observer feeding Prometheus collectors.
type Recorder struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	stagesTotal   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	memoryOps     *prometheus.CounterVec
	activeRuns    prometheus.Gauge
}

var _ types.Observer = (*Recorder)(nil)

// NewRecorder registers the collectors with reg. A nil reg uses the
// default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		runsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "heal_runs_started_total",
				Help: "Total number of repair runs started",
			},
		),
		// function names come from submitted code, so they are not a label
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heal_runs_finished_total",
				Help: "Total number of repair runs finished by status",
			},
			[]string{"status"},
		),
		stagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heal_stages_total",
				Help: "Total number of workflow stages run by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heal_stage_duration_seconds",
				Help:    "Duration of workflow stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		memoryOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heal_memory_operations_total",
				Help: "Total number of bug report memory operations by kind",
			},
			[]string{"op"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "heal_active_runs",
				Help: "Number of repair runs in flight",
			},
		),
	}
}

func (r *Recorder) Observe(e types.Event) {
	switch e.Type {
	case types.EventRunStarted:
		r.runsStarted.Inc()
		r.activeRuns.Inc()
	case types.EventRunFinished:
		r.runsFinished.WithLabelValues(string(e.Status)).Inc()
		r.activeRuns.Dec()
	case types.EventStageDone:
		outcome := "ok"
		switch {
		case e.Next == types.StageTerminated && e.Failed:
			outcome = "aborted"
		case e.Failed:
			outcome = "failed"
		}
		r.stagesTotal.WithLabelValues(string(e.Stage), outcome).Inc()
		r.stageDuration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
	case types.EventMemoryChanged:
		if e.Memory != nil {
			r.memoryOps.WithLabelValues(string(e.Memory.Op)).Inc()
		}
	}
}
