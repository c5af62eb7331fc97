package exporters

import (
	"os"

	log "github.com/sirupsen/logrus"
)

type StdoutExporter struct {
	logger *log.Logger
}

func InitStdoutExporter(useStdout *bool) *StdoutExporter {
	if useStdout == nil {
		useStdout = new(bool)
		*useStdout = os.Getenv("STDOUT_ENABLED") != "false"
	}
	if !*useStdout {
		return nil
	}

	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	return &StdoutExporter{
		logger: logger,
	}
}

func (exporter *StdoutExporter) SendCrashNotification(notification Notification) {
	fields := log.Fields{
		"id":        notification.ID,
		"kind":      notification.Kind,
		"message":   notification.Body,
		"timestamp": notification.Timestamp,
	}
	if notification.Action != nil {
		fields["action"] = notification.Action
	}
	exporter.logger.WithFields(fields).Error(notification.Title)
}
