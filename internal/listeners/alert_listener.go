package listeners

import (
	"go.uber.org/zap"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/metrics"
	"LiveGuard/pkg/util"
)

// InitAlertListeners hooks logging and metrics onto the process-wide bus.
func InitAlertListeners() func() {
	return Register(util.Sig(), metrics.Global())
}

// Register connects the alert and session listeners to sig. The returned func
// disconnects them.
func Register(sig *util.Signals, m *metrics.Metrics) func() {
	log := logger.Named("listeners")

	created := sig.Connect(models.SigAlertCreated, func(sender any, params ...any) {
		alert, ok := sender.(*models.Alert)
		if !ok {
			return
		}
		log.Info("alert created",
			zap.Int64("alert_id", alert.ID),
			zap.String("type", string(alert.AlertType)),
			zap.String("priority", string(alert.Priority)))
	})

	changed := sig.Connect(models.SigAlertStatusChanged, func(sender any, params ...any) {
		alert, ok := sender.(*models.Alert)
		if !ok || len(params) < 2 {
			return
		}
		from, _ := params[0].(models.AlertStatus)
		to, _ := params[1].(models.AlertStatus)
		m.IncStatusTransition(string(from), string(to))
		log.Info("alert status changed",
			zap.Int64("alert_id", alert.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	})

	logout := sig.Connect(models.SigForcedLogout, func(sender any, params ...any) {
		log.Warn("session expired, credentials cleared")
	})

	return func() {
		sig.Disconnect(models.SigAlertCreated, created)
		sig.Disconnect(models.SigAlertStatusChanged, changed)
		sig.Disconnect(models.SigForcedLogout, logout)
	}
}
