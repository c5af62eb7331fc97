package exporters

import (
	"fmt"
	"log/syslog"
	"os"

	"github.com/crewjam/rfc5424"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

// SyslogExporter is an exporter that sends notifications to syslog
type SyslogExporter struct {
	writer *syslog.Writer
}

// InitSyslogExporter initializes a new SyslogExporter
func InitSyslogExporter(syslogHost string) *SyslogExporter {
	if syslogHost == "" {
		syslogHost = os.Getenv("SYSLOG_HOST")
		if syslogHost == "" {
			return nil
		}
	}

	protocol := os.Getenv("SYSLOG_PROTOCOL")
	if protocol == "" {
		protocol = "udp"
	}

	writer, err := syslog.Dial(protocol, syslogHost, syslog.LOG_ERR, "tombstone-agent")
	if err != nil {
		logger.L().Error("failed to initialize syslog exporter", helpers.Error(err))
		return nil
	}

	return &SyslogExporter{
		writer: writer,
	}
}

// SendCrashNotification sends a notification to syslog (RFC 5424) - https://tools.ietf.org/html/rfc5424
func (se *SyslogExporter) SendCrashNotification(notification Notification) {
	params := []rfc5424.SDParam{
		{
			Name:  "id",
			Value: notification.ID,
		},
		{
			Name:  "kind",
			Value: string(notification.Kind),
		},
		{
			Name:  "title",
			Value: notification.Title,
		},
	}
	if action := notification.Action; action != nil {
		params = append(params,
			rfc5424.SDParam{Name: "package", Value: action.PackageName},
			rfc5424.SDParam{Name: "user_id", Value: fmt.Sprintf("%d", action.UserID)},
			rfc5424.SDParam{Name: "intent", Value: action.Intent},
		)
	}

	message := rfc5424.Message{
		Priority:  rfc5424.Error,
		Timestamp: notification.Timestamp,
		Hostname:  hostName(),
		AppName:   "tombstone-agent",
		ProcessID: fmt.Sprintf("%d", os.Getpid()),
		MessageID: string(notification.Kind),
		StructuredData: []rfc5424.StructuredData{
			{
				ID:         fmt.Sprintf("tombstone@%d", os.Getpid()),
				Parameters: params,
			},
		},
		Message: []byte(syslogMessage(notification)),
	}

	_, err := message.WriteTo(se.writer)
	if err != nil {
		logger.L().Error("failed to send notification to syslog", helpers.Error(err))
	}
}

// syslogMessage is the notification body followed by the diagnostic report
// when the two differ.
func syslogMessage(notification Notification) string {
	report := notification.Report()
	if report == notification.Body {
		return notification.Body
	}
	return notification.Body + "\n" + report
}

func hostName() string {
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}
