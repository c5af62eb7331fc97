package exporters

import (
	"time"

	"github.com/google/uuid"
)

// Exporter delivers user-facing crash notifications.
type Exporter interface {
	SendCrashNotification(notification Notification)
}

type NotificationKind string

// ExtraErrorReport is the action extra holding the full diagnostic report.
const ExtraErrorReport = "errorReport"

const (
	NotificationKindCrash       NotificationKind = "crash"
	NotificationKindMemtagCrash NotificationKind = "memtag_crash"
)

type Notification struct {
	ID        string              `json:"id"`
	Kind      NotificationKind    `json:"kind"`
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	Timestamp time.Time           `json:"timestamp"`
	Action    *NotificationAction `json:"action,omitempty"`
}

// NotificationAction is a deep link opened in the context of a package's user.
type NotificationAction struct {
	Label       string            `json:"label"`
	PackageName string            `json:"packageName"`
	UserID      int               `json:"userId"`
	Intent      string            `json:"intent"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// Report returns the diagnostic report of the crash. Security alerts carry a
// fixed body and keep the report in the action extras.
func (n Notification) Report() string {
	if n.Action != nil {
		if report, ok := n.Action.Extras[ExtraErrorReport]; ok && report != "" {
			return report
		}
	}
	return n.Body
}

// NewNotification stamps a notification with a fresh id.
func NewNotification(kind NotificationKind, title, body string, timestamp time.Time, action *NotificationAction) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		Timestamp: timestamp,
		Action:    action,
	}
}

var _ Exporter = (*ExporterMock)(nil)

type ExporterMock struct{}

func (e *ExporterMock) SendCrashNotification(_ Notification) {
}
