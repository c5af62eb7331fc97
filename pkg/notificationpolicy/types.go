package notificationpolicy

import (
	"time"

	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/kubescape/tombstone-agent/pkg/tombstone"
)

type DecisionKind int

const (
	Suppress DecisionKind = iota
	ShowGenericCrash
	ShowSecurityAlert
)

func (k DecisionKind) String() string {
	switch k {
	case ShowGenericCrash:
		return "generic_crash"
	case ShowSecurityAlert:
		return "security_alert"
	default:
		return "suppress"
	}
}

// Suppression reasons.
const (
	ReasonUnknownOwner                 = "unresolvable owner"
	ReasonRoutineAppCrash              = "routine app crash is reported by the platform crash dialog"
	ReasonHistorical                   = "historical entries never raise security alerts"
	ReasonMemtagNotificationSuppressed = "memory tagging notifications suppressed for package"
	ReasonBenignCrash                  = "process is on the benign crash allowlist"
	ReasonSystemCrashNotificationsOff  = "system process crash notifications are disabled"
)

// Intent carried by security alerts. It opens the error report of the crash in
// the context of the package's user.
const (
	ActionViewErrorReport = "android.intent.action.APP_ERROR"
	MemtagSettingsTarget  = "app_memtag_settings"
)

type ActionIntent struct {
	Action         string `json:"action"`
	SourcePackage  string `json:"sourcePackage"`
	UserID         int    `json:"userId"`
	ErrorReport    string `json:"errorReport"`
	SettingsTarget string `json:"settingsTarget"`
}

// Decision is the outcome for one crash event. Which fields are set depends on Kind.
type Decision struct {
	Kind   DecisionKind
	Reason string

	// ShowGenericCrash
	ProcessName string
	Timestamp   time.Time

	// ShowSecurityAlert
	PackageUID  int
	PackageName string
	Action      *ActionIntent

	Text string
}

func suppress(reason string) Decision {
	return Decision{Kind: Suppress, Reason: reason}
}

// Input is everything a decision may depend on besides configuration.
type Input struct {
	Record       *tombstone.CrashRecord
	Text         string
	Owner        ownership.Result
	Timestamp    time.Time
	IsHistorical bool
}

type Config struct {
	MemoryTaggingSupported              bool
	ShowSystemProcessCrashNotifications bool
	// CoreSystemProcess crashes are shown regardless of ShowSystemProcessCrashNotifications.
	CoreSystemProcess string
}

// PolicyStore holds per-package notification flags.
type PolicyStore interface {
	IsMemtagNotificationSuppressed(packageName string) (bool, error)
}
