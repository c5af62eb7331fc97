package exporters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterBusFanOut(t *testing.T) {
	first := &recordingExporter{}
	second := &recordingExporter{}
	bus := NewExporterBus(first, second, &ExporterMock{})

	notification := crashNotification()
	bus.SendCrashNotification(notification)

	require.Len(t, first.received(), 1)
	require.Len(t, second.received(), 1)
	assert.Equal(t, notification.ID, first.received()[0].ID)
	assert.Equal(t, notification.ID, second.received()[0].ID)
}

type panickingExporter struct{}

func (panickingExporter) SendCrashNotification(_ Notification) {
	panic("exporter is broken")
}

func TestExporterBusIsolatesPanics(t *testing.T) {
	after := &recordingExporter{}
	bus := NewExporterBus(panickingExporter{}, after)

	assert.NotPanics(t, func() {
		bus.SendCrashNotification(crashNotification())
	})
	assert.Len(t, after.received(), 1)
}

func TestInitExportersNoneConfigured(t *testing.T) {
	t.Setenv("STDOUT_ENABLED", "false")
	t.Setenv("SYSLOG_HOST", "")
	t.Setenv("EXPORTER_CSV_PATH", "")
	t.Setenv("HTTP_ENDPOINT_URL", "")
	bus, err := InitExporters(ExportersConfig{}, "device-1")
	assert.ErrorIs(t, err, ErrNoExporters)
	assert.Nil(t, bus)
}

func TestInitExportersStdout(t *testing.T) {
	t.Setenv("SYSLOG_HOST", "")
	t.Setenv("EXPORTER_CSV_PATH", "")
	t.Setenv("HTTP_ENDPOINT_URL", "")
	useStdout := true
	bus, err := InitExporters(ExportersConfig{StdoutExporter: &useStdout}, "device-1")
	require.NoError(t, err)
	assert.Len(t, bus.exporters, 1)
}

func TestNewNotificationUniqueIDs(t *testing.T) {
	a := crashNotification()
	b := crashNotification()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
