package exporters

import (
	"errors"
	"fmt"
	"os"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

type ExportersConfig struct {
	StdoutExporter           *bool               `mapstructure:"stdoutExporter"`
	HTTPExporterConfig       *HTTPExporterConfig `mapstructure:"httpExporterConfig"`
	SyslogExporter           string              `mapstructure:"syslogExporterURL"`
	CsvExporterPath          string              `mapstructure:"csvExporterPath"`
	AlertManagerExporterUrls []string            `mapstructure:"alertManagerExporterUrls"`
}

// ExporterBus is the single point of contact the pipeline dispatches through.
type ExporterBus struct {
	exporters []Exporter
}

var ErrNoExporters = errors.New("no exporters were initialized")

// InitExporters initializes all configured exporters.
func InitExporters(exportersConfig ExportersConfig, hostName string) (*ExporterBus, error) {
	var exporters []Exporter
	for _, url := range exportersConfig.AlertManagerExporterUrls {
		alertMan := InitAlertManagerExporter(url)
		if alertMan != nil {
			exporters = append(exporters, alertMan)
		}
	}
	stdoutExp := InitStdoutExporter(exportersConfig.StdoutExporter)
	if stdoutExp != nil {
		exporters = append(exporters, stdoutExp)
	}
	syslogExp := InitSyslogExporter(exportersConfig.SyslogExporter)
	if syslogExp != nil {
		exporters = append(exporters, syslogExp)
	}
	csvExp := InitCsvExporter(exportersConfig.CsvExporterPath)
	if csvExp != nil {
		exporters = append(exporters, csvExp)
	}
	if exportersConfig.HTTPExporterConfig == nil {
		if httpURL := os.Getenv("HTTP_ENDPOINT_URL"); httpURL != "" {
			exportersConfig.HTTPExporterConfig = &HTTPExporterConfig{}
			exportersConfig.HTTPExporterConfig.URL = httpURL
		}
	}
	if exportersConfig.HTTPExporterConfig != nil {
		httpExp, err := InitHTTPExporter(*exportersConfig.HTTPExporterConfig, hostName)
		if err != nil {
			logger.L().Error("failed to initialize http exporter", helpers.Error(err))
		} else {
			exporters = append(exporters, httpExp)
		}
	}

	if len(exporters) == 0 {
		return nil, ErrNoExporters
	}
	logger.L().Info("exporters initialized", helpers.Int("count", len(exporters)))

	return &ExporterBus{exporters: exporters}, nil
}

// NewExporterBus wraps already constructed exporters.
func NewExporterBus(exporters ...Exporter) *ExporterBus {
	return &ExporterBus{exporters: exporters}
}

// SendCrashNotification hands the notification to every exporter. A panicking
// exporter is logged and skipped, the rest still receive the notification.
func (e *ExporterBus) SendCrashNotification(notification Notification) {
	for _, exporter := range e.exporters {
		sendTo(exporter, notification)
	}
}

func sendTo(exporter Exporter, notification Notification) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("ExporterBus - exporter panicked",
				helpers.String("exporter", fmt.Sprintf("%T", exporter)),
				helpers.String("notification", notification.ID),
				helpers.Interface("recovered", r))
		}
	}()
	exporter.SendCrashNotification(notification)
}
