package models

// Signals emitted on util.Sig().
const (
	// sender *Alert, params: from AlertStatus, to AlertStatus
	SigAlertStatusChanged = "alert.status_changed"
	// sender *Alert
	SigAlertCreated = "alert.created"
	// sender nil
	SigForcedLogout = "auth.forced_logout"
)
