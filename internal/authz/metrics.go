package authz

import "github.com/prometheus/client_golang/prometheus"

const (
	decisionAllow = "allow"
	decisionDeny  = "deny"
	decisionError = "error"
)

// Metrics exposes Prometheus collectors for the authorization engine.
type Metrics struct {
	decisions *prometheus.CounterVec
	cacheOps  *prometheus.CounterVec
}

// NewMetrics registers engine metrics against the provided registerer. A nil
// registerer falls back to the default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlasdesk_authz_decisions_total",
		Help: "Authorization decisions by outcome. Errors fail closed and count as deny at the call site.",
	}, []string{"outcome"})
	cacheOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlasdesk_authz_cache_ops_total",
		Help: "Effective permission cache operations by result.",
	}, []string{"result"})
	registerer.MustRegister(decisions, cacheOps)
	return &Metrics{decisions: decisions, cacheOps: cacheOps}
}

// RecordDecision counts one authorization outcome.
func (m *Metrics) RecordDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// RecordCache counts one cache hit, miss or error.
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(result).Inc()
}
