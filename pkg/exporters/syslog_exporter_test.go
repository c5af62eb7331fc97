package exporters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mcuadros/go-syslog.v2"
)

func setupServer(t *testing.T, address string) syslog.LogPartsChannel {
	channel := make(syslog.LogPartsChannel, 100)
	handler := syslog.NewChannelHandler(channel)

	server := syslog.NewServer()
	server.SetFormat(syslog.Automatic)
	server.SetHandler(handler)
	// Due to permission issues, we can't listen on port 514 on the CI.
	require.NoError(t, server.ListenUDP(address))
	require.NoError(t, server.Boot())
	go server.Wait()
	t.Cleanup(func() { _ = server.Kill() })

	return channel
}

func TestSyslogExporter(t *testing.T) {
	channel := setupServer(t, "127.0.0.1:40000")

	t.Setenv("SYSLOG_HOST", "127.0.0.1:40000")
	t.Setenv("SYSLOG_PROTOCOL", "udp")

	syslogExp := InitSyslogExporter("")
	require.NotNil(t, syslogExp)

	syslogExp.SendCrashNotification(memtagNotification())
	syslogExp.SendCrashNotification(crashNotification())

	for i := 0; i < 2; i++ {
		select {
		case logParts := <-channel:
			assert.NotNil(t, logParts)
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for syslog message %d", i)
		}
	}
}

func TestSyslogExporterSendsReport(t *testing.T) {
	channel := setupServer(t, "127.0.0.1:40001")

	syslogExp := InitSyslogExporter("127.0.0.1:40001")
	require.NotNil(t, syslogExp)

	notification := memtagNotification()
	syslogExp.SendCrashNotification(notification)

	select {
	case logParts := <-channel:
		message, _ := logParts["message"].(string)
		assert.Contains(t, message, notification.Body)
		assert.Contains(t, message, "SEGV_MTESERR")
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for syslog message")
	}
}

func TestSyslogMessage(t *testing.T) {
	memtag := memtagNotification()
	assert.Equal(t, memtag.Body+"\n"+memtagReport, syslogMessage(memtag))

	crash := crashNotification()
	assert.Equal(t, crash.Body, syslogMessage(crash))
}

func TestSyslogExporterDisabled(t *testing.T) {
	t.Setenv("SYSLOG_HOST", "")
	assert.Nil(t, InitSyslogExporter(""))
}
