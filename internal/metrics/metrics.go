// Package metrics implements the metrics recorder collaborator named by
// spec §2/§9: an internally synchronized counter/histogram set injected
// into the Session Orchestrator (C5) and the Reaper Loop (C7), never
// consulted for decisions, only observed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the Prometheus collectors the control plane exposes.
type Recorder struct {
	deployTotal            prometheus.Counter
	deployFailuresTotal     prometheus.Counter
	undeployTotal           prometheus.Counter
	undeployFailuresTotal   prometheus.Counter
	deployDurationSeconds   prometheus.Histogram
	reaperDeletionsTotal    prometheus.Counter
	reaperErrorsTotal       prometheus.Counter
	ingressConflictsTotal   prometheus.Counter
}

// NewRecorder registers all collectors against the given registerer (pass
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry
// in tests).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		deployTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "session", Name: "deploy_total",
			Help: "Number of session create operations attempted.",
		}),
		deployFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "session", Name: "deploy_failures_total",
			Help: "Number of session create operations that failed.",
		}),
		undeployTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "session", Name: "undeploy_total",
			Help: "Number of session delete operations attempted.",
		}),
		undeployFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "session", Name: "undeploy_failures_total",
			Help: "Number of session delete operations that failed.",
		}),
		deployDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "playground", Subsystem: "session", Name: "deploy_duration_seconds",
			Help:    "Time from Deploying to first observed Running.",
			Buckets: prometheus.DefBuckets,
		}),
		reaperDeletionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "reaper", Name: "deletions_total",
			Help: "Number of sessions deleted by the reaper loop.",
		}),
		reaperErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "reaper", Name: "errors_total",
			Help: "Number of errors encountered during a reaper sweep.",
		}),
		ingressConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playground", Subsystem: "ingress", Name: "conflicts_total",
			Help: "Number of optimistic-concurrency conflicts observed on the singleton Ingress.",
		}),
	}
	reg.MustRegister(
		r.deployTotal, r.deployFailuresTotal, r.undeployTotal, r.undeployFailuresTotal,
		r.deployDurationSeconds, r.reaperDeletionsTotal, r.reaperErrorsTotal, r.ingressConflictsTotal,
	)
	return r
}

func (r *Recorder) IncDeploy()                      { r.deployTotal.Inc() }
func (r *Recorder) IncDeployFailure()               { r.deployFailuresTotal.Inc() }
func (r *Recorder) IncUndeploy()                    { r.undeployTotal.Inc() }
func (r *Recorder) IncUndeployFailure()             { r.undeployFailuresTotal.Inc() }
func (r *Recorder) ObserveDeployDurationSeconds(s float64) { r.deployDurationSeconds.Observe(s) }
func (r *Recorder) IncReaperDeletion()              { r.reaperDeletionsTotal.Inc() }
func (r *Recorder) IncReaperError()                 { r.reaperErrorsTotal.Inc() }
func (r *Recorder) IncIngressConflict()             { r.ingressConflictsTotal.Inc() }
