package observer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "codeexec"

// 1ms -> 30s
var durationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1, 2, 5, 10, 15, 30,
}

// PrometheusRecorder exports execution metrics to a Prometheus registry.
type PrometheusRecorder struct {
	compileTotal    *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	rejectedTotal   *prometheus.CounterVec
	sweepRemoved    prometheus.Counter
	sweepErrors     prometheus.Counter
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		compileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "compile_total",
			Help:      "Number of compile phases by language and result",
		}, []string{"language", "result"}),
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "compile_duration_seconds",
			Help:      "Histogram for the compile phase wall time",
			Buckets:   durationBuckets,
		}, []string{"language"}),
		runTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "run_total",
			Help:      "Number of executions by language and outcome",
		}, []string{"language", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Histogram for the run phase wall time",
			Buckets:   durationBuckets,
		}, []string{"language", "outcome"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_total",
			Help:      "Number of requests rejected before execution",
		}, []string{"language", "reason"}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_removed_total",
			Help:      "Number of stale workspace entries removed by the sweeper",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_errors_total",
			Help:      "Number of sweeper passes that reported an error",
		}),
	}
	collectors := []prometheus.Collector{
		r.compileTotal, r.compileDuration,
		r.runTotal, r.runDuration,
		r.rejectedTotal,
		r.sweepRemoved, r.sweepErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.compileTotal.WithLabelValues(languageID, result).Inc()
	r.compileDuration.WithLabelValues(languageID).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, outcome string, duration time.Duration) {
	r.runTotal.WithLabelValues(languageID, outcome).Inc()
	r.runDuration.WithLabelValues(languageID, outcome).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ObserveRejected(ctx context.Context, languageID string, reason string) {
	r.rejectedTotal.WithLabelValues(languageID, reason).Inc()
}

func (r *PrometheusRecorder) ObserveSweep(ctx context.Context, removed int, err error) {
	if removed > 0 {
		r.sweepRemoved.Add(float64(removed))
	}
	if err != nil {
		r.sweepErrors.Inc()
	}
}
