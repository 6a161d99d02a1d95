package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the pipeline and control panel.
type Metrics struct {
	registry      *prometheus.Registry
	ModelAttempts *prometheus.CounterVec
	QuotaRetries  *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	PipelineRuns  *prometheus.CounterVec
	Iterations    prometheus.Histogram
	RunDuration   *prometheus.HistogramVec
	StepDuration  *prometheus.HistogramVec
	ActiveRuns    *prometheus.GaugeVec
	TransportErrs *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with pipeline collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protoease_model_attempts_total",
		Help: "Model invocations by role, provider and outcome",
	}, []string{"role", "provider", "outcome"})

	quota := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protoease_quota_retries_total",
		Help: "Reduced-budget retries after a quota rejection",
	}, []string{"role", "provider"})

	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protoease_fallbacks_total",
		Help: "Switches from the primary to the secondary provider",
	}, []string{"role", "from", "to"})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protoease_pipeline_runs_total",
		Help: "Pipeline runs by outcome (passed, failed_qa, error)",
	}, []string{"outcome"})

	iterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "protoease_pipeline_iterations",
		Help:    "CODE/QA cycles per completed run",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	runDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protoease_pipeline_duration_seconds",
		Help:    "Pipeline run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	stepDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protoease_step_duration_seconds",
		Help:    "Duration of PLAN, CODE and QA steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "protoease_active_runs",
		Help: "Runs currently streaming, by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "protoease_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(attempts, quota, fallbacks, runs, iterations, runDur, stepDur, active, trErrors)

	return &Metrics{
		registry:      reg,
		ModelAttempts: attempts,
		QuotaRetries:  quota,
		Fallbacks:     fallbacks,
		PipelineRuns:  runs,
		Iterations:    iterations,
		RunDuration:   runDur,
		StepDuration:  stepDur,
		ActiveRuns:    active,
		TransportErrs: trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordModelAttempt counts one provider call.
func (m *Metrics) RecordModelAttempt(role, provider, outcome string) {
	if m == nil {
		return
	}
	m.ModelAttempts.WithLabelValues(orUnknown(role), orUnknown(provider), orUnknown(outcome)).Inc()
}

// RecordQuotaRetry counts a reduced-budget retry.
func (m *Metrics) RecordQuotaRetry(role, provider string) {
	if m == nil {
		return
	}
	m.QuotaRetries.WithLabelValues(orUnknown(role), orUnknown(provider)).Inc()
}

// RecordFallback counts a switch to the secondary provider.
func (m *Metrics) RecordFallback(role, from, to string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(orUnknown(role), orUnknown(from), orUnknown(to)).Inc()
}

// RecordRun records a finished run. iterations is ignored for errored runs.
func (m *Metrics) RecordRun(outcome string, iterations int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome = orUnknown(outcome)
	m.PipelineRuns.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if iterations > 0 {
		m.Iterations.Observe(float64(iterations))
	}
}

// ObserveStep records how long one pipeline step took.
func (m *Metrics) ObserveStep(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(orUnknown(step)).Observe(duration.Seconds())
}

// IncActiveRuns increments the active run gauge.
func (m *Metrics) IncActiveRuns(transport string) {
	if m == nil {
		return
	}
	m.ActiveRuns.WithLabelValues(orUnknown(transport)).Inc()
}

// DecActiveRuns decrements the active run gauge.
func (m *Metrics) DecActiveRuns(transport string) {
	if m == nil {
		return
	}
	m.ActiveRuns.WithLabelValues(orUnknown(transport)).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	m.TransportErrs.WithLabelValues(orUnknown(transport), orUnknown(reason)).Inc()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
