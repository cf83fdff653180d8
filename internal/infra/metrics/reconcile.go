package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconcileTotal, activeJobs) }

var reconcileTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_reconcile_events_total",
		Help: "Reconciliation outcomes for incoming progress events.",
	},
	[]string{"outcome"}, // 'applied', 'retried', 'dropped'
)

var activeJobs = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "sync_active_jobs",
		Help: "Jobs currently queued or processing in the local cache.",
	},
)

func IncReconcile(outcome string) { reconcileTotal.WithLabelValues(norm(outcome)).Inc() }
func SetActiveJobs(n int)         { activeJobs.Set(float64(n)) }
