// Package metrics exposes the auth subsystem's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the counters the auth handlers and stores report into.
// Construct one per process with a registry; tests use their own registry
// to stay independent.
type Metrics struct {
	Logins         *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
	AuthRejections *prometheus.CounterVec
	RateGuardFlags *prometheus.CounterVec
	SessionsOpened prometheus.Counter
	SessionsClosed prometheus.Counter
}

// New registers the auth metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total", Help: "Login attempts by result",
		}, []string{"result"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refreshes_total", Help: "Token refresh attempts by result",
		}, []string{"result"}),
		AuthRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rejections_total", Help: "Gateway rejections by reason",
		}, []string{"reason"}),
		RateGuardFlags: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rate_guard_flags_total", Help: "Rate guard flags by rule",
		}, []string{"rule"}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_opened_total", Help: "Sessions created by login",
		}),
		SessionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_closed_total", Help: "Sessions removed by logout and logout-all",
		}),
	}
}
