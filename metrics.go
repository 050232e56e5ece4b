package main

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics counts pipeline events. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	registry          *prometheus.Registry
	plannerIterations prometheus.Counter
	dispatches        *prometheus.CounterVec
	videoSynthesis    *prometheus.CounterVec
	qualityReviews    *prometheus.CounterVec
	publishes         *prometheus.CounterVec
	runs              *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline counters on a fresh registry
func NewPipelineMetrics() *PipelineMetrics {
	m := &PipelineMetrics{
		registry: prometheus.NewRegistry(),
		plannerIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_agent_planner_iterations_total",
			Help: "Planner calls made by the orchestrator.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_agent_dispatch_total",
			Help: "Dispatched actions by name and error flag.",
		}, []string{"action", "is_error"}),
		videoSynthesis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_agent_video_synthesis_total",
			Help: "Video synthesis attempts by outcome.",
		}, []string{"status"}),
		qualityReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_agent_quality_reviews_total",
			Help: "Video quality reviews by verdict.",
		}, []string{"verdict"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_agent_publish_total",
			Help: "Publish attempts by platform and success.",
		}, []string{"platform", "success"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_agent_runs_total",
			Help: "Orchestrator runs by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.plannerIterations, m.dispatches, m.videoSynthesis, m.qualityReviews, m.publishes, m.runs)
	return m
}

func (m *PipelineMetrics) PlannerIteration() {
	if m == nil {
		return
	}
	m.plannerIterations.Inc()
}

func (m *PipelineMetrics) Dispatched(action string, isError bool) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(action, strconv.FormatBool(isError)).Inc()
}

func (m *PipelineMetrics) VideoSynthesized(status SynthesisStatus) {
	if m == nil {
		return
	}
	m.videoSynthesis.WithLabelValues(string(status)).Inc()
}

func (m *PipelineMetrics) QualityReviewed(approved bool) {
	if m == nil {
		return
	}
	m.qualityReviews.WithLabelValues(verdictLabel(approved)).Inc()
}

func (m *PipelineMetrics) Published(platform Platform, success bool) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(string(platform), strconv.FormatBool(success)).Inc()
}

// RunFinished records how an orchestrator run ended: completed or exhausted
func (m *PipelineMetrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the /metrics endpoint in the background
func (m *PipelineMetrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("✗ Metrics server stopped: %v", err)
		}
	}()
	log.Printf("→ Serving metrics on %s/metrics", addr)
	return server
}
