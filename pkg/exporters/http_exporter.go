package exporters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

type HTTPExporterConfig struct {
	// URL is the URL to send the HTTP request to
	URL string `json:"url" mapstructure:"url"`
	// Headers is a map of headers to send in the HTTP request
	Headers map[string]string `json:"headers" mapstructure:"headers"`
	// Timeout is the timeout for the HTTP request
	TimeoutSeconds int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	// Method is the HTTP method to use for the HTTP request
	Method                    string `json:"method" mapstructure:"method"`
	MaxNotificationsPerMinute int    `json:"maxNotificationsPerMinute" mapstructure:"maxNotificationsPerMinute"`
}

type HTTPExporter struct {
	config     HTTPExporterConfig
	Host       string `json:"host"`
	httpClient *http.Client
	// notifications sent in the current minute
	count         int
	countLock     sync.Mutex
	countStart    time.Time
	limitNotified bool
}

type CrashNotificationList struct {
	Kind       string                    `json:"kind"`
	APIVersion string                    `json:"apiVersion"`
	Spec       CrashNotificationListSpec `json:"spec"`
}

type CrashNotificationListSpec struct {
	Host          string         `json:"host"`
	Notifications []Notification `json:"notifications"`
}

func (config *HTTPExporterConfig) Validate() error {
	if config.Method == "" {
		config.Method = "POST"
	} else if config.Method != "POST" && config.Method != "PUT" {
		return fmt.Errorf("method must be POST or PUT")
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 5
	}
	if config.MaxNotificationsPerMinute == 0 {
		config.MaxNotificationsPerMinute = 100
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	if config.URL == "" {
		return fmt.Errorf("URL is required")
	}
	return nil
}

// InitHTTPExporter initializes an HTTPExporter with the given URL, headers, timeout, and method
func InitHTTPExporter(config HTTPExporterConfig, hostName string) (*HTTPExporter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &HTTPExporter{
		Host:   hostName,
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

func (exporter *HTTPExporter) SendCrashNotification(notification Notification) {
	limitReached, notifyLimit := exporter.checkLimit()
	if notifyLimit {
		exporter.sendLimitReached()
		return
	}
	if limitReached {
		return
	}
	exporter.sendInList(notification)
}

func (exporter *HTTPExporter) sendLimitReached() {
	logger.L().Error("HTTPExporter - notification limit reached",
		helpers.Int("limit", exporter.config.MaxNotificationsPerMinute))
	exporter.sendInList(NewNotification(NotificationKindCrash,
		"Notification limit reached",
		"Check logs for more information",
		time.Now(), nil))
}

func (exporter *HTTPExporter) sendInList(notification Notification) {
	list := CrashNotificationList{
		Kind:       "CrashNotifications",
		APIVersion: "kubescape.io/v1",
		Spec: CrashNotificationListSpec{
			Host:          exporter.Host,
			Notifications: []Notification{notification},
		},
	}

	bodyBytes, err := json.Marshal(list)
	if err != nil {
		logger.L().Error("HTTPExporter - failed to marshal notification list", helpers.Error(err))
		return
	}

	req, err := http.NewRequest(exporter.config.Method,
		exporter.config.URL+"/v1/crashnotifications", bytes.NewReader(bodyBytes))
	if err != nil {
		logger.L().Error("HTTPExporter - failed to create HTTP request", helpers.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range exporter.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := exporter.httpClient.Do(req)
	if err != nil {
		logger.L().Error("HTTPExporter - failed to send HTTP request", helpers.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.L().Error("HTTPExporter - received non-2xx status code", helpers.Int("status", resp.StatusCode))
		return
	}

	// discard the body
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		logger.L().Error("HTTPExporter - failed to clear response body", helpers.Error(err))
	}
}

// checkLimit counts a notification against the per-minute budget. notify is
// true exactly once per window, for the first notification over the limit.
func (exporter *HTTPExporter) checkLimit() (reached bool, notify bool) {
	exporter.countLock.Lock()
	defer exporter.countLock.Unlock()

	if exporter.countStart.IsZero() || time.Since(exporter.countStart) > time.Minute {
		exporter.countStart = time.Now()
		exporter.count = 0
		exporter.limitNotified = false
	}

	exporter.count++
	reached = exporter.count > exporter.config.MaxNotificationsPerMinute
	if reached && !exporter.limitNotified {
		exporter.limitNotified = true
		notify = true
	}
	return reached, notify
}
