package eventpipeline

import (
	"fmt"

	"github.com/kubescape/tombstone-agent/pkg/exporters"
	"github.com/kubescape/tombstone-agent/pkg/notificationpolicy"
)

const (
	memtagAlertBody = "Memory tagging detected memory corruption in this app. Tap to open its memory tagging settings."
	moreInfoLabel   = "More info"
	extraSourcePkg  = "sourcePackage"
	extraSettings   = "settings"
)

func toNotification(decision notificationpolicy.Decision) exporters.Notification {
	if decision.Kind == notificationpolicy.ShowSecurityAlert {
		var action *exporters.NotificationAction
		if a := decision.Action; a != nil {
			action = &exporters.NotificationAction{
				Label:       moreInfoLabel,
				PackageName: a.SourcePackage,
				UserID:      a.UserID,
				Intent:      a.Action,
				Extras: map[string]string{
					exporters.ExtraErrorReport: a.ErrorReport,
					extraSourcePkg:             a.SourcePackage,
					extraSettings:              a.SettingsTarget,
				},
			}
		}
		return exporters.NewNotification(exporters.NotificationKindMemtagCrash,
			fmt.Sprintf("%s: memory corruption detected", decision.PackageName),
			memtagAlertBody,
			decision.Timestamp,
			action)
	}

	return exporters.NewNotification(exporters.NotificationKindCrash,
		fmt.Sprintf("%s crashed", decision.ProcessName),
		decision.Text,
		decision.Timestamp,
		nil)
}
