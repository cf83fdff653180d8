package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(framesTotal, framesDroppedTotal, reconnectsTotal) }

var framesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_frames_received_total",
		Help: "Realtime frames received, labeled by envelope type.",
	},
	[]string{"type"},
)

var framesDroppedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_frames_dropped_total",
		Help: "Frames dropped, labeled by reason.",
	},
	[]string{"reason"}, // 'malformed', 'unknown_type'
)

var reconnectsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sync_transport_reconnects_total",
		Help: "Number of reconnect attempts made by the realtime transport.",
	},
)

func IncFrame(frameType string)     { framesTotal.WithLabelValues(norm(frameType)).Inc() }
func IncFrameDropped(reason string) { framesDroppedTotal.WithLabelValues(norm(reason)).Inc() }
func IncReconnect()                 { reconnectsTotal.Inc() }
