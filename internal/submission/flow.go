// Package submission is the emergency alert form: validation, location
// capture, offline confirmation, the pending-alert cache and the SMS handoff
// to emergency contacts.
package submission

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"LiveGuard/internal/alertstore"
	"LiveGuard/internal/device"
	"LiveGuard/internal/localstore"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/notification"
)

var (
	// ErrOfflineConfirmationRequired is returned by Submit while offline
	// until the caller retries with ConfirmOffline.
	ErrOfflineConfirmationRequired = errors.New("offline: confirmation required")
	// ErrLocationUnavailable is wrapped by every location failure.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Form is what the user filled in.
type Form struct {
	AlertType   models.AlertType
	Priority    models.Priority
	Description string
}

type Options struct {
	// Online reports connectivity; nil means online.
	Online func() bool
	// ConfirmOffline sends anyway after the offline prompt.
	ConfirmOffline bool
}

func (o Options) online() bool { return o.Online == nil || o.Online() }

type Result struct {
	Alert   *models.Alert
	Address string
}

// AlertID is the alert the status screen should open.
func (r *Result) AlertID() int64 {
	if r == nil || r.Alert == nil {
		return 0
	}
	return r.Alert.ID
}

// Mounted is the form state after Mount.
type Mounted struct {
	Form Form
	// Banner is the unsent alert from a previous attempt, nil if none.
	Banner *models.PendingAlert
}

type Flow struct {
	store   *alertstore.Store
	local   *localstore.Store
	locator device.Locator
	sms     *notification.EmergencySMS
	log     *zap.Logger

	locationTimeout time.Duration

	mu     sync.Mutex
	banner *models.PendingAlert
}

type Option func(*Flow)

func WithSMS(s *notification.EmergencySMS) Option {
	return func(f *Flow) { f.sms = s }
}

func WithLocationTimeout(d time.Duration) Option {
	return func(f *Flow) { f.locationTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) { f.log = l }
}

func NewFlow(store *alertstore.Store, local *localstore.Store, locator device.Locator, opts ...Option) *Flow {
	f := &Flow{
		store:           store,
		local:           local,
		locator:         locator,
		locationTimeout: 10 * time.Second,
		log:             logger.Named("submission"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mount loads the cached pending alert and prefills type and priority from it.
func (f *Flow) Mount(ctx context.Context) (Mounted, error) {
	p, err := f.local.PendingAlert(ctx)
	if err != nil {
		return Mounted{}, err
	}
	f.mu.Lock()
	f.banner = p
	f.mu.Unlock()

	if p == nil {
		return Mounted{}, nil
	}
	return Mounted{
		Form:   Form{AlertType: p.AlertType, Priority: p.Priority, Description: p.Description},
		Banner: p,
	}, nil
}

// Banner is the pending alert currently shown, or nil.
func (f *Flow) Banner() *models.PendingAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.banner
}

func (f *Flow) DismissPending(ctx context.Context) error {
	f.mu.Lock()
	f.banner = nil
	f.mu.Unlock()
	return f.local.ClearPendingAlert(ctx)
}

// Validate returns a validation error listing every missing or unknown field.
func Validate(form Form) error {
	var fields []errors.FieldError
	if !form.AlertType.Valid() {
		fields = append(fields, errors.FieldError{Field: "alert_type", Message: i18n.M("validation.alert_type")})
	}
	if !form.Priority.Valid() {
		fields = append(fields, errors.FieldError{Field: "priority_level", Message: i18n.M("validation.priority_level")})
	}
	if len(fields) > 0 {
		return errors.Validation(fields...)
	}
	return nil
}

// Submit validates the form, captures the location and creates the alert.
// Anything that fails after validation leaves a pending alert behind for
// the next Mount.
func (f *Flow) Submit(ctx context.Context, form Form, opts Options) (*Result, error) {
	form.Description = strings.TrimSpace(form.Description)
	if err := Validate(form); err != nil {
		return nil, err
	}
	if !opts.online() && !opts.ConfirmOffline {
		return nil, ErrOfflineConfirmationRequired
	}

	fix, address, err := f.locate(ctx)
	if err != nil {
		f.savePending(ctx, models.PendingAlert{
			AlertType:   form.AlertType,
			Priority:    form.Priority,
			Description: form.Description,
		})
		return nil, err
	}

	lat, lon := device.Round7(fix.Latitude), device.Round7(fix.Longitude)
	req := models.CreateAlertRequest{
		AlertType:   form.AlertType,
		Priority:    form.Priority,
		Description: form.Description,
		Latitude:    lat,
		Longitude:   lon,
		Accuracy:    fix.Accuracy,
	}

	alert, err := f.store.CreateAlert(ctx, req)
	if err != nil {
		f.savePending(ctx, models.PendingAlert{
			AlertType:   form.AlertType,
			Priority:    form.Priority,
			Description: form.Description,
			Latitude:    &lat,
			Longitude:   &lon,
			Accuracy:    fix.Accuracy,
			Address:     address,
		})
		f.log.Warn("alert submission failed", zap.Bool("retryable", Retryable(err)), zap.Error(err))
		return nil, err
	}

	if err := f.local.ClearPendingAlert(ctx); err != nil {
		f.log.Warn("failed to clear pending alert", zap.Error(err))
	}
	f.mu.Lock()
	f.banner = nil
	f.mu.Unlock()

	f.log.Info("alert submitted", zap.Int64("alert_id", alert.ID), zap.String("type", string(alert.AlertType)))
	return &Result{Alert: alert, Address: address}, nil
}

// Retryable reports whether a failed submit is worth resending as is.
func Retryable(err error) bool {
	return errors.IsTransport(err)
}

func (f *Flow) locate(ctx context.Context) (device.Fix, string, error) {
	perm, err := f.locator.RequestPermission(ctx)
	if err != nil {
		return device.Fix{}, "", errors.Wrap(ErrLocationUnavailable, i18n.M("error.location"))
	}
	if perm != device.PermissionGranted {
		return device.Fix{}, "", errors.Wrap(ErrLocationUnavailable, i18n.M("error.location_permission"))
	}

	lctx, cancel := context.WithTimeout(ctx, f.locationTimeout)
	defer cancel()

	fix, err := f.locator.Current(lctx, device.AccuracyHigh)
	if err != nil {
		f.log.Warn("location fix failed", zap.Error(err))
		return device.Fix{}, "", errors.Wrap(ErrLocationUnavailable, i18n.M("error.location"))
	}

	addr, err := f.locator.ReverseGeocode(lctx, fix.Latitude, fix.Longitude)
	if err != nil {
		// 地址只是展示用
		f.log.Debug("reverse geocode failed", zap.Error(err))
		addr = device.Address{}
	}
	return fix, addr.String(), nil
}

func (f *Flow) savePending(ctx context.Context, p models.PendingAlert) {
	if err := f.local.SavePendingAlert(ctx, p); err != nil {
		f.log.Warn("failed to save pending alert", zap.Error(err))
		return
	}
	f.mu.Lock()
	f.banner = &p
	f.mu.Unlock()
}

// NotifyContacts opens one SMS to the stored emergency contacts. It is
// best-effort: failures are logged and the launched link (if any) returned.
func (f *Flow) NotifyContacts(ctx context.Context, alert *models.Alert, address string) string {
	if f.sms == nil || alert == nil {
		return ""
	}
	contacts, err := f.local.Contacts(ctx)
	if err != nil {
		f.log.Warn("failed to load contacts", zap.Error(err))
		return ""
	}
	if len(contacts) == 0 {
		return ""
	}
	phones := make([]string, 0, len(contacts))
	for _, c := range contacts {
		phones = append(phones, c.Phone)
	}

	where := address
	if where == "" && alert.Location != nil {
		where = strconv.FormatFloat(alert.Location.Latitude.Float(), 'f', 7, 64) + ", " +
			strconv.FormatFloat(alert.Location.Longitude.Float(), 'f', 7, 64)
	}
	body := i18n.M("sms.body", map[string]interface{}{
		"Type":     alert.AlertType,
		"AlertID":  alert.ID,
		"Location": where,
	})

	link, err := f.sms.Notify(ctx, phones, body)
	if err != nil {
		f.log.Warn("emergency contact sms failed", zap.Int64("alert_id", alert.ID), zap.Error(err))
	}
	return link
}

// --- contacts ---

func (f *Flow) Contacts(ctx context.Context) ([]models.EmergencyContact, error) {
	return f.local.Contacts(ctx)
}

func (f *Flow) AddContact(ctx context.Context, name, phone string) (models.EmergencyContact, error) {
	return f.local.AddContact(ctx, name, phone)
}

func (f *Flow) RemoveContact(ctx context.Context, id string) error {
	return f.local.RemoveContact(ctx, id)
}
