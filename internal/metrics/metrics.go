// Package metrics exposes the relay's Prometheus instrumentation: session and
// stream gauges and command and auth counters, registered on the default
// Prometheus registry. The /metrics HTTP handler is mounted by internal/httpapi.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arcs_sessions_active",
		Help: "Number of sessions currently tracked by the session manager",
	})

	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcs_sessions_created_total",
		Help: "Total sessions minted fresh (excludes adoptions)",
	})

	sessionsAdoptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcs_sessions_adopted_total",
		Help: "Total auth attempts that adopted an already-active session instead of minting one",
	})

	sessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcs_sessions_closed_total",
		Help: "Total sessions closed, labeled by reason",
	}, []string{"reason"}) // reason=device_disconnect|idle_timeout

	controllersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arcs_controllers_connected",
		Help: "Number of controller-legs currently attached across all sessions",
	})

	framesRoutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcs_frames_routed_total",
		Help: "Total logical video frames routed from a device-leg to its controllers",
	})

	framesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcs_frames_dropped_total",
		Help: "Total queued video packets dropped because a controller's FIFO was full",
	})

	bytesRoutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcs_bytes_routed_total",
		Help: "Total video packet bytes accepted from device-legs",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcs_commands_total",
		Help: "Control commands routed from a controller-leg to a device-leg, by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome=forwarded|rate_limited

	authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcs_auth_attempts_total",
		Help: "Device authentication attempts, by outcome",
	}, []string{"outcome"}) // outcome=success|failure|rate_limited

	connectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arcs_connections_active",
		Help: "WebSocket connections currently open, by role",
	}, []string{"role"}) // role=device|controller|unauthenticated
)

func IncSessionCreated() { sessionsActive.Inc(); sessionsCreatedTotal.Inc() }
func IncSessionAdopted() { sessionsAdoptedTotal.Inc() }
func DecSessionClosed(reason string) {
	sessionsActive.Dec()
	sessionsClosedTotal.WithLabelValues(reason).Inc()
}

func IncControllerConnected() { controllersConnected.Inc() }
func DecControllerConnected() { controllersConnected.Dec() }

func AddFrameRouted(bytes int) {
	framesRoutedTotal.Inc()
	bytesRoutedTotal.Add(float64(bytes))
}
func IncFrameDropped() { framesDroppedTotal.Inc() }

func IncCommand(kind, outcome string) { commandsTotal.WithLabelValues(kind, outcome).Inc() }
func IncAuthAttempt(outcome string)   { authAttemptsTotal.WithLabelValues(outcome).Inc() }

func SetConnectionRole(role string, delta float64) {
	connectionsActive.WithLabelValues(role).Add(delta)
}
