package metricsmanager

import (
	"errors"
	"net/http"
	"time"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/metricsmanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sourceLabel = "source"
	reasonLabel = "reason"
	kindLabel   = "kind"

	DefaultAddr = ":8080"
)

var _ metricsmanager.MetricsManager = (*PrometheusMetric)(nil)

type PrometheusMetric struct {
	addr             string
	server           *http.Server
	eventCounter     *prometheus.CounterVec
	discardedCounter *prometheus.CounterVec
	decisionCounter  *prometheus.CounterVec
	processingTime   *prometheus.HistogramVec
}

func NewPrometheusMetric(addr string) *PrometheusMetric {
	if addr == "" {
		addr = DefaultAddr
	}
	return &PrometheusMetric{
		addr: addr,
		eventCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tombstone_agent_event_counter",
			Help: "The total number of crash records received by source",
		}, []string{sourceLabel}),
		discardedCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tombstone_agent_discarded_counter",
			Help: "The total number of crash records dropped before a decision",
		}, []string{reasonLabel}),
		decisionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tombstone_agent_decision_counter",
			Help: "The total number of notification decisions by kind",
		}, []string{kindLabel}),
		processingTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tombstone_agent_processing_time_seconds",
			Help:    "Time taken to handle a crash record by source",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{sourceLabel}),
	}
}

func (p *PrometheusMetric) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	p.server = &http.Server{Addr: p.addr, Handler: mux}
	go func() {
		logger.L().Info("prometheus metrics server started", helpers.String("addr", p.addr), helpers.String("path", "/metrics"))
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Error("prometheus metrics server stopped", helpers.Error(err))
		}
	}()
}

func (p *PrometheusMetric) Destroy() {
	if p.server != nil {
		_ = p.server.Close()
	}
	prometheus.Unregister(p.eventCounter)
	prometheus.Unregister(p.discardedCounter)
	prometheus.Unregister(p.decisionCounter)
	prometheus.Unregister(p.processingTime)
}

func (p *PrometheusMetric) ReportEvent(source string) {
	p.eventCounter.WithLabelValues(source).Inc()
}

func (p *PrometheusMetric) ReportDiscarded(reason string) {
	p.discardedCounter.WithLabelValues(reason).Inc()
}

func (p *PrometheusMetric) ReportDecision(kind string) {
	p.decisionCounter.WithLabelValues(kind).Inc()
}

func (p *PrometheusMetric) ReportProcessingTime(source string, duration time.Duration) {
	p.processingTime.WithLabelValues(source).Observe(duration.Seconds())
}
