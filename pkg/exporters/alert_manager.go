package exporters

// here we will have the functionality to export the notifications to the alert manager
// Path: pkg/exporters/alert_manager.go

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aquilax/truncate"
	"github.com/go-openapi/strfmt"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/prometheus/alertmanager/api/v2/client"
	"github.com/prometheus/alertmanager/api/v2/client/alert"
	"github.com/prometheus/alertmanager/api/v2/models"
)

// rendered reports can hold hundreds of frames
const maxDescriptionLength = 2048

type AlertManagerExporter struct {
	Host     string
	NodeName string
	client   *client.AlertmanagerAPI
}

func InitAlertManagerExporter(alertManagerURL string) *AlertManagerExporter {
	// Create a new alertManager client
	cfg := client.DefaultTransportConfig().WithHost(alertManagerURL)
	amClient := client.NewHTTPClientWithConfig(nil, cfg)
	hostName, err := os.Hostname()
	if err != nil {
		logger.L().Error("failed to get hostname", helpers.Error(err))
		return nil
	}

	return &AlertManagerExporter{
		client:   amClient,
		Host:     hostName,
		NodeName: os.Getenv("NODE_NAME"),
	}
}

func (ame *AlertManagerExporter) SendCrashNotification(notification Notification) {
	labels := map[string]string{
		"alertname": "TombstoneCrashNotification",
		"kind":      string(notification.Kind),
		"severity":  severity(notification.Kind),
		"host":      ame.Host,
		"node_name": ame.NodeName,
		"id":        notification.ID,
	}
	if action := notification.Action; action != nil {
		labels["package_name"] = action.PackageName
		labels["user_id"] = fmt.Sprintf("%d", action.UserID)
	}

	startsAt := notification.Timestamp
	if startsAt.IsZero() {
		startsAt = time.Now()
	}
	myAlert := models.PostableAlert{
		StartsAt: strfmt.DateTime(startsAt),
		EndsAt:   strfmt.DateTime(startsAt.Add(time.Hour)),
		Annotations: map[string]string{
			"title":       notification.Title,
			"summary":     notification.Title,
			"body":        notification.Body,
			"message":     notification.Report(),
			"description": truncate.Truncate(notification.Report(), maxDescriptionLength, "...", truncate.PositionEnd),
		},
		Alert: models.Alert{
			Labels: labels,
		},
	}

	// Send the alert
	params := alert.NewPostAlertsParams().WithContext(context.Background()).WithAlerts(models.PostableAlerts{&myAlert})
	isOK, err := ame.client.Alert.PostAlerts(params)
	if err != nil {
		logger.L().Error("AlertManagerExporter.SendCrashNotification - error sending alert", helpers.Error(err))
		return
	}
	if isOK == nil {
		logger.L().Error("AlertManagerExporter.SendCrashNotification - alert was not sent successfully")
		return
	}
}

func severity(kind NotificationKind) string {
	if kind == NotificationKindMemtagCrash {
		return "critical"
	}
	return "warning"
}
