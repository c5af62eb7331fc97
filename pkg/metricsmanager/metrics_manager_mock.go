package metricsmanager

import (
	"time"

	"github.com/goradd/maps"
)

var _ MetricsManager = (*MetricsMock)(nil)

type MetricsMock struct {
	EventCounter     maps.SafeMap[string, int]
	DiscardedCounter maps.SafeMap[string, int]
	DecisionCounter  maps.SafeMap[string, int]
	ProcessingTime   maps.SafeMap[string, time.Duration]
}

func NewMetricsMock() *MetricsMock {
	return &MetricsMock{}
}

func (m *MetricsMock) Start() {
}

func (m *MetricsMock) Destroy() {
	m.EventCounter.Clear()
	m.DiscardedCounter.Clear()
	m.DecisionCounter.Clear()
	m.ProcessingTime.Clear()
}

func (m *MetricsMock) ReportEvent(source string) {
	m.EventCounter.Set(source, m.EventCounter.Get(source)+1)
}

func (m *MetricsMock) ReportDiscarded(reason string) {
	m.DiscardedCounter.Set(reason, m.DiscardedCounter.Get(reason)+1)
}

func (m *MetricsMock) ReportDecision(kind string) {
	m.DecisionCounter.Set(kind, m.DecisionCounter.Get(kind)+1)
}

func (m *MetricsMock) ReportProcessingTime(source string, duration time.Duration) {
	m.ProcessingTime.Set(source, duration)
}
