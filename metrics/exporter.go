// Package metrics provides Prometheus metrics export for the orchestration
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports pipeline and agent metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	pipelineLatency *prometheus.HistogramVec
	pipelineTotal   *prometheus.CounterVec

	taskResults  *prometheus.CounterVec
	taskLatency  *prometheus.HistogramVec
	waveDepth    prometheus.Histogram
	poolActive   prometheus.Gauge
	agentConf    *prometheus.GaugeVec
	agentFailure *prometheus.GaugeVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds).
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates a Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.pipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cortex",
			Subsystem: "pipeline",
			Name:      "latency_seconds",
			Help:      "End-to-end pipeline latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"complexity", "status"},
	)
	e.pipelineTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total number of pipeline requests",
		},
		[]string{"intent", "status"},
	)
	e.taskResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "tasks",
			Name:      "results_total",
			Help:      "Task results by cluster and status",
		},
		[]string{"cluster", "status"},
	)
	e.taskLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cortex",
			Subsystem: "tasks",
			Name:      "latency_seconds",
			Help:      "Task execution latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"cluster"},
	)
	e.waveDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cortex",
			Subsystem: "scheduler",
			Name:      "wave_depth",
			Help:      "Number of waves per executed DAG",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		},
	)
	e.poolActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cortex",
			Subsystem: "workerpool",
			Name:      "active_workers",
			Help:      "Workers currently in flight",
		},
	)
	e.agentConf = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cortex",
			Subsystem: "agents",
			Name:      "confidence_score",
			Help:      "Current agent confidence score",
		},
		[]string{"agent_id", "cluster"},
	)
	e.agentFailure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cortex",
			Subsystem: "agents",
			Name:      "failure_rate",
			Help:      "Current agent failure rate",
		},
		[]string{"agent_id", "cluster"},
	)

	registry.MustRegister(
		e.pipelineLatency, e.pipelineTotal,
		e.taskResults, e.taskLatency,
		e.waveDepth, e.poolActive,
		e.agentConf, e.agentFailure,
	)
	return e
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ObservePipeline records one finished pipeline run.
func (e *Exporter) ObservePipeline(intent, complexity, status string, d time.Duration) {
	e.pipelineLatency.WithLabelValues(complexity, status).Observe(d.Seconds())
	e.pipelineTotal.WithLabelValues(intent, status).Inc()
}

// ObserveTask records one settled task.
func (e *Exporter) ObserveTask(cluster, status string, d time.Duration) {
	e.taskResults.WithLabelValues(cluster, status).Inc()
	if status == "completed" || status == "failed" {
		e.taskLatency.WithLabelValues(cluster).Observe(d.Seconds())
	}
}

// ObserveWaves records the wave count of one executed DAG.
func (e *Exporter) ObserveWaves(waves int) {
	e.waveDepth.Observe(float64(waves))
}

// SetPoolActive updates the active-worker gauge.
func (e *Exporter) SetPoolActive(n int) {
	e.poolActive.Set(float64(n))
}

// SetAgentGauges updates the per-agent confidence and failure gauges.
func (e *Exporter) SetAgentGauges(agentID, cluster string, confidence, failureRate float64) {
	e.agentConf.WithLabelValues(agentID, cluster).Set(confidence)
	e.agentFailure.WithLabelValues(agentID, cluster).Set(failureRate)
}
