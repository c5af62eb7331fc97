package notificationpolicy

import (
	"fmt"

	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/kubescape/tombstone-agent/pkg/utils"
)

type Policy struct {
	cfg   Config
	store PolicyStore
}

func NewPolicy(cfg Config, store PolicyStore) *Policy {
	return &Policy{cfg: cfg, store: store}
}

// Decide applies the notification gates in order; the first match wins. The
// only external read is the per-package flag, consulted for memory tagging
// faults of regular apps.
func (p *Policy) Decide(in Input) (Decision, error) {
	processName := in.Owner.ProcessName
	benignCrash := in.Owner.BenignCrash

	switch in.Owner.Kind {
	case ownership.KindApp:
		if !in.Owner.IsSystemPackage {
			return p.decideApp(in)
		}
		processName, benignCrash = in.Owner.PackageName, false
	case ownership.KindSystem:
	default:
		return suppress(ReasonUnknownOwner), nil
	}

	if processName != p.cfg.CoreSystemProcess {
		if benignCrash {
			return suppress(ReasonBenignCrash), nil
		}
		if !p.cfg.ShowSystemProcessCrashNotifications {
			return suppress(ReasonSystemCrashNotificationsOff), nil
		}
	}

	return Decision{
		Kind:        ShowGenericCrash,
		ProcessName: processName,
		Text:        in.Text,
		Timestamp:   in.Timestamp,
	}, nil
}

// decideApp handles regular applications: only memory tagging faults are
// surfaced, everything else is left to the platform crash dialog.
func (p *Policy) decideApp(in Input) (Decision, error) {
	if in.IsHistorical {
		return suppress(ReasonHistorical), nil
	}
	if in.Record == nil || !p.cfg.MemoryTaggingSupported || !in.Record.Signal.IsMemoryTaggingFault() {
		return suppress(ReasonRoutineAppCrash), nil
	}

	suppressed, err := p.store.IsMemtagNotificationSuppressed(in.Owner.PackageName)
	if err != nil {
		return Decision{}, fmt.Errorf("memtag notification flag of %s: %w", in.Owner.PackageName, err)
	}
	if suppressed {
		return suppress(ReasonMemtagNotificationSuppressed), nil
	}

	return Decision{
		Kind:        ShowSecurityAlert,
		PackageUID:  in.Owner.UID,
		PackageName: in.Owner.PackageName,
		Text:        in.Text,
		Timestamp:   in.Timestamp,
		Action: &ActionIntent{
			Action:         ActionViewErrorReport,
			SourcePackage:  in.Owner.PackageName,
			UserID:         utils.UserID(in.Owner.UID),
			ErrorReport:    in.Text,
			SettingsTarget: MemtagSettingsTarget,
		},
	}, nil
}
