package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics are constructed eagerly so callers can increment them before (or
// without) registration; Register wires them into a registry at startup.
var (
	SignInRequestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entryway_sign_in_requested_total",
		Help: "Total number of sign-in requests received.",
	})
	SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entryway_sessions_created_total",
		Help: "Total number of passwordless sessions created.",
	})
	ConfirmSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entryway_confirm_success_total",
		Help: "Total number of successful token confirmations.",
	})
	ConfirmFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entryway_confirm_failure_total",
		Help: "Total number of failed token confirmations.",
	})
	ActiveLoginsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "entryway_active_logins_gauge",
		Help: "Current number of established logins.",
	})
)

// Register wires the flow metrics into reg. Call once at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics")
		return
	}
	for _, c := range []prometheus.Collector{
		SignInRequestedTotal,
		SessionsCreatedTotal,
		ConfirmSuccessTotal,
		ConfirmFailureTotal,
		ActiveLoginsGauge,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Prometheus metrics registered")
}
