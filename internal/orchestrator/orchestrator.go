// Package orchestrator drives the status screen of one alert: polling while
// focused, the cancel window, live location streaming, the ETA countdown and
// the one-time rating prompt.
//
// 所有定时器和订阅都是 scheduler.Handle，失去焦点或进入终态时全部停止。
package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"LiveGuard/internal/alertstore"
	"LiveGuard/internal/device"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/metrics"
	"LiveGuard/pkg/scheduler"
)

const (
	handlePoll     = "alert-status-poll"
	handleCountd   = "cancel-countdown"
	handleETA      = "eta-countdown"
	handleLocation = "location-stream"
	handleFeedback = "cancel-feedback"
)

// RatedSet remembers which alerts were rated or dismissed.
// *localstore.Store implements it.
type RatedSet interface {
	IsRated(ctx context.Context, alertID int64) (bool, error)
	MarkRated(ctx context.Context, alertID int64) error
}

type Orchestrator struct {
	alertID int64
	store   *alertstore.Store
	rated   RatedSet
	locator device.Locator
	sched   *scheduler.Scheduler
	limiter *limiter.Limiter
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
	log     *zap.Logger

	onChange    func(View)
	onCancelled func()

	mu             sync.Mutex
	handles        map[string]scheduler.Handle
	focused        bool
	ratingPrompted bool
	showRating     bool
	lastPushed     *device.Fix
}

type Option func(*Orchestrator)

func WithConfig(c Config) Option {
	return func(o *Orchestrator) { o.cfg = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRegistry tracks handles in reg, e.g. one registry per app.
func WithRegistry(reg *scheduler.Registry) Option {
	return func(o *Orchestrator) { o.sched = scheduler.New(reg) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// OnChange is called with a fresh view after every poll and tick.
func OnChange(fn func(View)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// OnCancelled is called once, SuccessFeedbackDelay after a successful cancel.
func OnCancelled(fn func()) Option {
	return func(o *Orchestrator) { o.onCancelled = fn }
}

func New(alertID int64, store *alertstore.Store, rated RatedSet, locator device.Locator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		alertID: alertID,
		store:   store,
		rated:   rated,
		locator: locator,
		cfg:     DefaultConfig(),
		now:     time.Now,
		metrics: metrics.Global(),
		log:     logger.Named("orchestrator").With(zap.Int64("alert_id", alertID)),
		handles: make(map[string]scheduler.Handle),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sched == nil {
		o.sched = scheduler.New(nil)
	}
	if o.cfg.LocationMinInterval > 0 {
		o.limiter = limiter.New(memory.NewStore(), limiter.Rate{Period: o.cfg.LocationMinInterval, Limit: 1})
	}
	return o
}

// Focus fetches the status immediately and starts the handles the alert's
// state calls for. Focusing twice is a no-op.
func (o *Orchestrator) Focus(ctx context.Context) {
	o.mu.Lock()
	if o.focused {
		o.mu.Unlock()
		return
	}
	o.focused = true
	o.mu.Unlock()

	o.poll(ctx)

	alert := o.alert()
	if alert != nil && alert.Status.IsTerminal() {
		return
	}

	o.mu.Lock()
	if !o.focused {
		o.mu.Unlock()
		return
	}
	o.startLocked(handlePoll, func() scheduler.Handle {
		return o.sched.Every(handlePoll, o.cfg.PollInterval, scheduler.FuncJob(o.poll))
	})
	o.mu.Unlock()

	o.ensureCountdown(alert)
	o.ensureETATick(alert)
	o.startLocationStream(ctx)
	o.reportHandles()
}

// Blur stops every handle. Responses already in flight still land in the
// store but start nothing new.
func (o *Orchestrator) Blur() {
	o.mu.Lock()
	o.focused = false
	o.stopAllLocked()
	o.mu.Unlock()
	o.reportHandles()
}

// ActiveHandles is the number of live timers and subscriptions.
func (o *Orchestrator) ActiveHandles() int {
	return o.sched.Registry().Count()
}

func (o *Orchestrator) startLocked(name string, start func() scheduler.Handle) {
	if _, ok := o.handles[name]; ok {
		return
	}
	o.handles[name] = start()
}

func (o *Orchestrator) stopLocked(name string) {
	if h, ok := o.handles[name]; ok {
		h.Stop()
		delete(o.handles, name)
	}
}

func (o *Orchestrator) stopAllLocked() {
	for name := range o.handles {
		o.stopLocked(name)
	}
}

func (o *Orchestrator) reportHandles() {
	o.metrics.SetLiveHandles(o.ActiveHandles())
}

// alert is the store's copy of this orchestrator's alert, or nil.
func (o *Orchestrator) alert() *models.Alert {
	snap := o.store.Snapshot()
	for _, a := range []*models.Alert{snap.CurrentAlert, snap.AlertStatus} {
		if a != nil && a.ID == o.alertID {
			return a
		}
	}
	return nil
}

func (o *Orchestrator) poll(ctx context.Context) {
	// 失焦不取消已发出的请求
	ctx = context.WithoutCancel(ctx)
	alert, err := o.store.FetchAlertStatus(ctx, o.alertID)
	if err != nil {
		o.metrics.IncPoll("alert_status", "error")
		o.log.Debug("status poll failed", zap.Error(err))
		o.emit()
		return
	}
	o.metrics.IncPoll("alert_status", "ok")

	if alert.Status.IsTerminal() {
		o.mu.Lock()
		o.stopAllLocked()
		o.mu.Unlock()
		o.reportHandles()
	}
	if alert.Status == models.StatusResolved {
		o.maybePromptRating(ctx)
	}
	if !alert.Status.IsTerminal() {
		// 首次拉取失败时倒计时在这里补上
		o.ensureCountdown(alert)
		o.ensureETATick(alert)
	}
	o.emit()
}

func (o *Orchestrator) maybePromptRating(ctx context.Context) {
	o.mu.Lock()
	if o.ratingPrompted {
		o.mu.Unlock()
		return
	}
	o.ratingPrompted = true
	o.mu.Unlock()

	rated, err := o.rated.IsRated(ctx, o.alertID)
	if err != nil {
		o.log.Warn("failed to read rated set", zap.Error(err))
		return
	}
	if !rated {
		o.mu.Lock()
		o.showRating = true
		o.mu.Unlock()
	}
}

// ensureCountdown starts the 1s cancel countdown while the window is open.
func (o *Orchestrator) ensureCountdown(alert *models.Alert) {
	if alert == nil || alert.Status.IsTerminal() {
		return
	}
	o.mu.Lock()
	if o.focused && o.viewLocked(alert, o.now()).CanCancel {
		o.startLocked(handleCountd, func() scheduler.Handle {
			return o.sched.Every(handleCountd, o.cfg.TickInterval, scheduler.FuncJob(o.tickCountdown))
		})
	}
	o.mu.Unlock()
	o.reportHandles()
}

func (o *Orchestrator) ensureETATick(alert *models.Alert) {
	if alert == nil || alert.Status.IsTerminal() {
		return
	}
	first := alert.FirstAssignment()
	if first == nil || first.Acknowledgment == nil || first.Acknowledgment.EstimatedArrival == nil {
		return
	}
	o.mu.Lock()
	if o.focused {
		o.startLocked(handleETA, func() scheduler.Handle {
			return o.sched.Every(handleETA, o.cfg.TickInterval, scheduler.FuncJob(o.tickETA))
		})
	}
	o.mu.Unlock()
	o.reportHandles()
}

func (o *Orchestrator) tickCountdown(ctx context.Context) {
	v := o.View(o.now())
	if !v.CanCancel {
		o.mu.Lock()
		o.stopLocked(handleCountd)
		o.mu.Unlock()
		o.reportHandles()
	}
	o.notify(v)
}

func (o *Orchestrator) tickETA(ctx context.Context) {
	v := o.View(o.now())
	if v.ETARemaining == nil || *v.ETARemaining == 0 {
		o.mu.Lock()
		o.stopLocked(handleETA)
		o.mu.Unlock()
		o.reportHandles()
	}
	o.notify(v)
}

func (o *Orchestrator) emit() { o.notify(o.View(o.now())) }

func (o *Orchestrator) notify(v View) {
	if o.onChange != nil {
		o.onChange(v)
	}
}

// View computes the screen state at now.
func (o *Orchestrator) View(now time.Time) View {
	alert := o.alert()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked(alert, now)
}

func (o *Orchestrator) viewLocked(alert *models.Alert, now time.Time) View {
	v := buildView(alert, now, o.cfg.CancelWindow)
	v.AlertID = o.alertID
	v.PollError = o.store.Snapshot().StatusError
	v.ShowRatingPrompt = o.showRating
	return v
}

// DismissError clears the poll error banner.
func (o *Orchestrator) DismissError() {
	o.store.ClearStatusError()
}

// Cancel cancels the alert while the window is open. On success every handle
// stops and OnCancelled fires after the feedback delay.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	if v := o.View(o.now()); !v.CanCancel {
		return errors.Validation(errors.FieldError{Field: "cancel", Message: i18n.M("validation.cancel_window")})
	}
	if err := o.store.CancelAlert(ctx, o.alertID); err != nil {
		return err
	}

	o.mu.Lock()
	o.stopAllLocked()
	if o.onCancelled != nil {
		var h scheduler.Handle
		h = o.sched.OnceAfter(handleFeedback, o.cfg.SuccessFeedbackDelay, scheduler.FuncJob(func(context.Context) {
			o.mu.Lock()
			if o.handles[handleFeedback] == h {
				delete(o.handles, handleFeedback)
			}
			o.mu.Unlock()
			o.onCancelled()
		}))
		o.handles[handleFeedback] = h
	}
	o.mu.Unlock()
	o.reportHandles()
	o.emit()
	return nil
}

// SubmitRating records the alert as rated, then sends the rating. A failed
// send is only logged; the prompt never comes back.
func (o *Orchestrator) SubmitRating(ctx context.Context, rating int) error {
	if rating < 1 || rating > 5 {
		return errors.Validation(errors.FieldError{Field: "rating", Message: i18n.M("validation.rating")})
	}
	if err := o.closeRating(ctx); err != nil {
		return err
	}
	// the store logs failures
	_ = o.store.RateAlert(ctx, o.alertID, rating)
	return nil
}

// DismissRating hides the prompt for good without sending anything.
func (o *Orchestrator) DismissRating(ctx context.Context) error {
	return o.closeRating(ctx)
}

func (o *Orchestrator) closeRating(ctx context.Context) error {
	o.mu.Lock()
	o.showRating = false
	o.mu.Unlock()
	return o.rated.MarkRated(ctx, o.alertID)
}

// --- location stream ---

func (o *Orchestrator) startLocationStream(ctx context.Context) {
	if o.locator == nil {
		return
	}
	perm, err := o.locator.RequestPermission(ctx)
	if err != nil || perm != device.PermissionGranted {
		o.log.Debug("location permission not granted, live location off")
		return
	}

	stop, err := o.locator.Watch(context.WithoutCancel(ctx), device.WatchOptions{
		Accuracy:    device.AccuracyHigh,
		MinInterval: o.cfg.LocationMinInterval,
		MinDistance: o.cfg.LocationMinDistance,
	}, func(f device.Fix) { o.pushFix(ctx, f) })
	if err != nil {
		o.log.Warn("location watch failed", zap.Error(err))
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.focused {
		stop()
		return
	}
	if _, ok := o.handles[handleLocation]; ok {
		stop()
		return
	}
	o.handles[handleLocation] = o.sched.Registry().Track(handleLocation, stop)
}

func (o *Orchestrator) pushFix(ctx context.Context, f device.Fix) {
	o.mu.Lock()
	if !o.focused {
		o.mu.Unlock()
		return
	}
	if o.lastPushed != nil && device.Distance(*o.lastPushed, f) < o.cfg.LocationMinDistance {
		o.mu.Unlock()
		o.metrics.IncLocationPush("filtered")
		return
	}
	o.mu.Unlock()

	if o.limiter != nil {
		lctx, err := o.limiter.Get(ctx, "alert:"+strconv.FormatInt(o.alertID, 10))
		if err == nil && lctx.Reached {
			o.metrics.IncLocationPush("throttled")
			return
		}
	}

	lat, lon := device.Round7(f.Latitude), device.Round7(f.Longitude)
	if err := o.store.UpdateAlertLocation(context.WithoutCancel(ctx), o.alertID, lat, lon, f.Accuracy); err != nil {
		o.metrics.IncLocationPush("error")
		return
	}
	o.metrics.IncLocationPush("sent")

	o.mu.Lock()
	fix := f
	o.lastPushed = &fix
	o.mu.Unlock()
}
