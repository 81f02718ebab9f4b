package observability

import (
	"context"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	suites       *prometheus.CounterVec
	suiteSeconds *prometheus.HistogramVec
	cases        *prometheus.CounterVec
	caseSeconds  *prometheus.HistogramVec
	running      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		suites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3conform_suites_total",
			Help: "Finished suites by service and final state.",
		}, []string{"service", "state"}),
		suiteSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "s3conform_suite_duration_seconds",
			Help:    "Wall time of one suite including teardown.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3conform_cases_total",
			Help: "Executed cases by service, operation and result.",
		}, []string{"service", "operation", "result"}),
		caseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "s3conform_case_duration_seconds",
			Help:    "Duration of one case call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "s3conform_suites_running",
			Help: "Suites currently executing.",
		}, []string{"service"}),
	}
	for _, c := range []prometheus.Collector{m.suites, m.suiteSeconds, m.cases, m.caseSeconds, m.running} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSuiteStart: func(_ context.Context, e *domain.SuiteEvent) {
			m.running.WithLabelValues(e.Service).Inc()
		},
		OnSuiteFinish: func(_ context.Context, e *domain.SuiteEvent) {
			m.running.WithLabelValues(e.Service).Dec()
			m.suites.WithLabelValues(e.Service, string(e.State)).Inc()
			m.suiteSeconds.WithLabelValues(e.Service).Observe(e.Duration.Seconds())
		},
		OnCaseFinish: func(_ context.Context, e *domain.CaseEvent) {
			result := "pass"
			if !e.Success {
				result = "failed"
			}
			m.cases.WithLabelValues(e.Service, e.Operation, result).Inc()
			m.caseSeconds.WithLabelValues(e.Service, e.Operation).Observe(e.Duration.Seconds())
		},
	}
}
