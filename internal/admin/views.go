// Package admin holds the oversight views over the admin endpoints.
package admin

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/cache"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/logger"
)

type API interface {
	AdminDashboard(ctx context.Context) (*models.Dashboard, error)
	AdminAlerts(ctx context.Context, f models.AdminAlertFilter) ([]models.Alert, error)
	AdminAlert(ctx context.Context, alertID int64) (*models.Alert, error)
	AdminAssign(ctx context.Context, alertID, agencyID int64) (*models.Message, error)
	AdminAgencies(ctx context.Context) ([]models.AgencyRecord, error)
	AdminAgency(ctx context.Context, agencyID int64) (*models.AgencyRecord, error)
	AdminCreateAgency(ctx context.Context, a models.AgencyRecord) (*models.AgencyRecord, error)
	AdminUpdateAgency(ctx context.Context, agencyID int64, a models.AgencyRecord) (*models.AgencyRecord, error)
	AdminPatchAgency(ctx context.Context, agencyID int64, fields map[string]interface{}) (*models.AgencyRecord, error)
	AdminDeleteAgency(ctx context.Context, agencyID int64) error
	AdminUsers(ctx context.Context) ([]models.AdminUser, error)
	AdminSetUserActive(ctx context.Context, userID int64, active bool) (*models.AdminUser, error)
	AdminNotifications(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error)
	AdminReports(ctx context.Context) (*models.Reports, error)
	AdminSettings(ctx context.Context) ([]models.SystemSetting, error)
	AdminUpdateSettings(ctx context.Context, values map[string]string) (*models.SettingsUpdate, error)
}

// Dashboard adds the derived figures to the server's dashboard.
type Dashboard struct {
	models.Dashboard
	// alerts neither RESOLVED nor CANCELLED
	ActiveAlerts int
	// resolved share of all alerts in percent, nil without alerts
	ResolutionRate *float64
}

const (
	keyReports  = "admin:reports"
	keySettings = "admin:settings"
)

type Views struct {
	api   API
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

type Option func(*Views)

// WithCache sets the cache for reports and settings. ttl <= 0 disables it.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(v *Views) {
		v.cache = c
		v.ttl = ttl
	}
}

func New(api API, opts ...Option) (*Views, error) {
	v := &Views{api: api, ttl: 30 * time.Second, log: logger.Named("admin")}
	for _, opt := range opts {
		opt(v)
	}
	if v.cache == nil && v.ttl > 0 {
		c, err := cache.NewGoCache(cache.LocalConfig{DefaultExpiration: v.ttl, CleanupInterval: time.Minute})
		if err != nil {
			return nil, errors.Wrap(err, "admin cache")
		}
		v.cache = c
	}
	return v, nil
}

func (v *Views) Dashboard(ctx context.Context) (*Dashboard, error) {
	d, err := v.api.AdminDashboard(ctx)
	if err != nil {
		return nil, err
	}
	out := &Dashboard{Dashboard: *d}
	for status, n := range d.AlertsByStatus {
		if !models.AlertStatus(status).IsTerminal() {
			out.ActiveAlerts += n
		}
	}
	if d.TotalAlerts > 0 {
		rate := math.Round(float64(d.AlertsByStatus[string(models.StatusResolved)])*1000/float64(d.TotalAlerts)) / 10
		out.ResolutionRate = &rate
	}
	return out, nil
}

func (v *Views) Alerts(ctx context.Context, f models.AdminAlertFilter) ([]models.Alert, error) {
	return v.api.AdminAlerts(ctx, f)
}

func (v *Views) Alert(ctx context.Context, alertID int64) (*models.Alert, error) {
	return v.api.AdminAlert(ctx, alertID)
}

// Assign dispatches one more agency to an alert and returns the server's
// confirmation text.
func (v *Views) Assign(ctx context.Context, alertID, agencyID int64) (string, error) {
	msg, err := v.api.AdminAssign(ctx, alertID, agencyID)
	if err != nil {
		return "", err
	}
	v.log.Info("agency assigned", zap.Int64("alert_id", alertID), zap.Int64("agency_id", agencyID))
	return msg.Message, nil
}

// --- agencies ---

func (v *Views) Agencies(ctx context.Context) ([]models.AgencyRecord, error) {
	return v.api.AdminAgencies(ctx)
}

func (v *Views) Agency(ctx context.Context, agencyID int64) (*models.AgencyRecord, error) {
	return v.api.AdminAgency(ctx, agencyID)
}

func (v *Views) CreateAgency(ctx context.Context, a models.AgencyRecord) (*models.AgencyRecord, error) {
	return v.api.AdminCreateAgency(ctx, a)
}

func (v *Views) UpdateAgency(ctx context.Context, agencyID int64, a models.AgencyRecord) (*models.AgencyRecord, error) {
	return v.api.AdminUpdateAgency(ctx, agencyID, a)
}

func (v *Views) PatchAgency(ctx context.Context, agencyID int64, fields map[string]interface{}) (*models.AgencyRecord, error) {
	return v.api.AdminPatchAgency(ctx, agencyID, fields)
}

func (v *Views) DeleteAgency(ctx context.Context, agencyID int64) error {
	return v.api.AdminDeleteAgency(ctx, agencyID)
}

// --- users ---

func (v *Views) Users(ctx context.Context) ([]models.AdminUser, error) {
	return v.api.AdminUsers(ctx)
}

func (v *Views) SetUserActive(ctx context.Context, userID int64, active bool) (*models.AdminUser, error) {
	u, err := v.api.AdminSetUserActive(ctx, userID, active)
	if err != nil {
		return nil, err
	}
	v.log.Info("user active flag changed", zap.Int64("user_id", userID), zap.Bool("active", active))
	return u, nil
}

func (v *Views) Notifications(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error) {
	return v.api.AdminNotifications(ctx, f)
}

// --- reports & settings (cached) ---

func (v *Views) Reports(ctx context.Context) (*models.Reports, error) {
	return cache.Remember(ctx, v.cache, keyReports, v.ttl, v.api.AdminReports)
}

func (v *Views) Settings(ctx context.Context) ([]models.SystemSetting, error) {
	return cache.Remember(ctx, v.cache, keySettings, v.ttl, v.api.AdminSettings)
}

// UpdateSettings writes values and drops the cached settings. Keys the
// server does not know come back in Errors.
func (v *Views) UpdateSettings(ctx context.Context, values map[string]string) (*models.SettingsUpdate, error) {
	res, err := v.api.AdminUpdateSettings(ctx, values)
	if v.cache != nil {
		_ = v.cache.Delete(ctx, keySettings)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Invalidate drops every cached view.
func (v *Views) Invalidate(ctx context.Context) {
	if v.cache != nil {
		_ = v.cache.Clear(ctx)
	}
}
