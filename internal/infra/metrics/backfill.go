package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(backfillRunsTotal, backfillRepairedTotal, cancelTotal) }

var backfillRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_backfill_runs_total",
		Help: "Backfill passes, labeled by trigger.",
	},
	[]string{"trigger"}, // 'load', 'reconnect', 'manual'
)

var backfillRepairedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sync_backfill_repaired_total",
		Help: "Messages whose job state was repaired by a backfill pass.",
	},
)

var cancelTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_cancel_total",
		Help: "Cancellation attempts, labeled by outcome.",
	},
	[]string{"outcome"}, // 'ok', 'rejected', 'guarded', 'error'
)

func IncBackfillRun(trigger string) { backfillRunsTotal.WithLabelValues(norm(trigger)).Inc() }
func IncBackfillRepaired()          { backfillRepairedTotal.Inc() }
func IncCancel(outcome string)      { cancelTotal.WithLabelValues(norm(outcome)).Inc() }
