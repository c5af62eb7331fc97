package utils

// Platform uid layout. A uid is userId*PerUserRange + appId.
const (
	PerUserRange = 100000

	SystemUID = 1000

	FirstApplicationUID = 10000
	LastApplicationUID  = 19999

	FirstAppZygoteIsolatedUID = 90000
	LastAppZygoteIsolatedUID  = 98999

	FirstIsolatedUID = 99000
	LastIsolatedUID  = 99999
)

// AppID strips the user portion of a uid.
func AppID(uid int) int {
	return uid % PerUserRange
}

// UserID returns the user a uid belongs to.
func UserID(uid int) int {
	return uid / PerUserRange
}

// UID builds the uid of appID for the given user.
func UID(userID, appID int) int {
	return userID*PerUserRange + AppID(appID)
}

// IsApplicationUID reports whether uid belongs to a regular installed application.
func IsApplicationUID(uid int) bool {
	if uid < 0 {
		return false
	}
	appID := AppID(uid)
	return appID >= FirstApplicationUID && appID <= LastApplicationUID
}

// IsIsolatedUID reports whether uid is a sandboxed isolated-process uid,
// including app-zygote isolated processes.
func IsIsolatedUID(uid int) bool {
	if uid < 0 {
		return false
	}
	appID := AppID(uid)
	return (appID >= FirstIsolatedUID && appID <= LastIsolatedUID) ||
		(appID >= FirstAppZygoteIsolatedUID && appID <= LastAppZygoteIsolatedUID)
}
