package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/holdemd/internal/game"
)

const metricsNamespace = "holdemd"

// Metrics is the server's instrumentation, kept on a dedicated
// prometheus registry so tests can construct servers side by side
// without duplicate registration panics.
type Metrics struct {
	reg *prometheus.Registry

	Actions              *prometheus.CounterVec
	ErrorsSent           *prometheus.CounterVec
	MessagesBroadcast    *prometheus.CounterVec
	SendFailures         prometheus.Counter
	SubscribersConnected prometheus.Gauge
	HandsStarted         prometheus.Counter
	HandsCompleted       prometheus.Counter
	AnimationTimeouts    prometheus.Counter
	AIFallbacks          prometheus.Counter
	AICoercions          prometheus.Counter
}

// NewMetrics creates the full metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actions_total",
			Help:      "Player actions by kind and outcome.",
		}, []string{"action", "outcome"}),
		ErrorsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_sent_total",
			Help:      "Error messages sent to clients by code.",
		}, []string{"code"}),
		MessagesBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_broadcast_total",
			Help:      "Messages fanned out to subscribers by type.",
		}, []string{"type"}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "send_failures_total",
			Help:      "Subscriber sends that failed and dropped the subscriber.",
		}),
		SubscribersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "subscribers",
			Help:      "Connected websocket subscribers.",
		}),
		HandsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hands_started_total",
			Help:      "Hands dealt.",
		}),
		HandsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hands_completed_total",
			Help:      "Hands played to a conclusion.",
		}),
		AnimationTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "animation_timeouts_total",
			Help:      "Animation waits that fell back to the timer.",
		}),
		AIFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ai_fallbacks_total",
			Help:      "Oracle failures answered with the deterministic fallback.",
		}),
		AICoercions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ai_coercions_total",
			Help:      "Oracle decisions coerced to a legal action.",
		}),
	}
}

// TrackGames registers a gauge sampling the live game count.
func (m *Metrics) TrackGames(count func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "games",
		Help:      "Games in the registry.",
	}, func() float64 { return float64(count()) })
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) observeAction(res *game.ActionResult) {
	outcome := "applied"
	if !res.OK {
		outcome = "rejected"
	}
	m.Actions.WithLabelValues(res.Action.String(), outcome).Inc()
}
