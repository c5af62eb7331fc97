package exporters

import (
	"sync"
	"time"
)

type recordingExporter struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *recordingExporter) SendCrashNotification(notification Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification)
}

func (r *recordingExporter) received() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

const memtagReport = "signal 11 (SIGSEGV), code 9 (SEGV_MTESERR), fault addr 0x0a00007fd4c0e010\n" +
	"    #00 pc 0000000000001234  /data/app/com.example.app/lib/arm64/libfoo.so (parse_header+52)"

func memtagNotification() Notification {
	return NewNotification(NotificationKindMemtagCrash,
		"com.example.app crashed with a memory safety error",
		"Memory tagging detected an invalid memory access. Open memory tagging settings to learn more.",
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		&NotificationAction{
			Label:       "More info",
			PackageName: "com.example.app",
			UserID:      10,
			Intent:      "android.intent.action.APP_ERROR",
			Extras: map[string]string{
				ExtraErrorReport: memtagReport,
				"settings":       "app_memtag_settings",
			},
		})
}

func crashNotification() Notification {
	return NewNotification(NotificationKindCrash,
		"system_server crashed",
		"uid: 1000\ncmdline: system_server",
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		nil)
}
