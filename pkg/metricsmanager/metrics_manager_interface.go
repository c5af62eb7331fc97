package metricsmanager

import "time"

// Event sources.
const (
	SourceLive       = "live"
	SourceHistorical = "historical"
)

// MetricsManager is an interface for reporting metrics
type MetricsManager interface {
	Start()
	Destroy()
	ReportEvent(source string)
	ReportDiscarded(reason string)
	ReportDecision(kind string)
	ReportProcessingTime(source string, duration time.Duration)
}
