package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OAuth flow metrics. Package level so the protocol core can record without
// carrying a registry around.
var (
	FlowsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_flows_started_total",
		Help: "Flows iniciados (redirect al provider)",
	}, []string{"provider"})

	FlowsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_flows_total",
		Help: "Callbacks procesados por resultado (completed|rejected|failed)",
	}, []string{"provider", "outcome"})

	CallbackDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oauth_callback_duration_seconds",
		Help:    "Duración total del callback (validación + exchange + userinfo)",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oauth_upstream_duration_seconds",
		Help:    "Latencia de llamadas al provider por etapa",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "stage", "result"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_rate_limited_total",
		Help: "Requests rechazadas por rate limit",
	}, []string{"route"})
)

// Register registers the OAuth metrics on reg (default registerer if nil).
// Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{FlowsStarted, FlowsFinished, CallbackDuration, UpstreamDuration, RateLimited} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func FlowStarted(provider string) {
	FlowsStarted.WithLabelValues(provider).Inc()
}

func FlowFinished(provider, outcome string, d time.Duration) {
	FlowsFinished.WithLabelValues(provider, outcome).Inc()
	CallbackDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func ObserveUpstream(provider, stage, result string, d time.Duration) {
	UpstreamDuration.WithLabelValues(provider, stage, result).Observe(d.Seconds())
}

func RateLimit(route string) {
	RateLimited.WithLabelValues(route).Inc()
}
