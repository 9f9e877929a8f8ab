// Package agency is the responder console: the assignment queue, the
// selected assignment's detail and location, acknowledgment and status
// updates.
package agency

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/cache"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/metrics"
	"LiveGuard/pkg/scheduler"
	"LiveGuard/pkg/sse"
)

const Topic = "agency"

var ErrAlreadyAcknowledged = errors.New("assignment already acknowledged")

type API interface {
	AgencyAssignments(ctx context.Context) ([]models.Assignment, error)
	AssignmentLocation(ctx context.Context, assignmentID int64) (*models.AssignmentLocation, error)
	AcknowledgeAssignment(ctx context.Context, assignmentID int64, req models.AcknowledgeRequest) (*models.Acknowledgment, error)
	UpdateAssignmentStatus(ctx context.Context, assignmentID int64, status models.AlertStatus) (*models.StatusUpdateResponse, error)
}

// AckForm is the acknowledgment form. Zero values are left out of the
// request.
type AckForm struct {
	AcknowledgedBy   string
	EstimatedArrival int
	ResponseMessage  string
	ResponderContact string
}

type Console struct {
	api       API
	locations cache.Cache
	hub       *sse.Hub
	reg       *scheduler.Registry
	cron      *scheduler.Cron
	sched     *scheduler.Scheduler
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *zap.Logger

	schedule string
	tick     time.Duration

	mu            sync.RWMutex
	assignments   []models.Assignment
	loaded        bool
	selectedID    int64
	location      *models.AssignmentLocation
	listError     string
	statusError   string
	statusMessage string

	runMu   sync.Mutex
	handles []scheduler.Handle
	running bool
}

type Option func(*Console)

// WithSchedule sets the cron expression of the list poll.
func WithSchedule(expr string) Option {
	return func(c *Console) { c.schedule = expr }
}

func WithTick(d time.Duration) Option {
	return func(c *Console) { c.tick = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

func WithHub(h *sse.Hub) Option {
	return func(c *Console) { c.hub = h }
}

// WithLocationCache replaces the default LRU of last known locations.
func WithLocationCache(lc cache.Cache) Option {
	return func(c *Console) { c.locations = lc }
}

func WithRegistry(reg *scheduler.Registry) Option {
	return func(c *Console) { c.reg = reg }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Console) { c.metrics = m }
}

func NewConsole(api API, opts ...Option) *Console {
	c := &Console{
		api:      api,
		schedule: "@every 30s",
		tick:     time.Second,
		now:      time.Now,
		metrics:  metrics.Global(),
		log:      logger.Named("agency"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.locations == nil {
		c.locations = cache.NewLocalCache(cache.LocalConfig{MaxSize: 64})
	}
	if c.hub == nil {
		c.hub = sse.NewHub(0)
	}
	if c.reg == nil {
		c.reg = scheduler.NewRegistry()
	}
	c.sched = scheduler.New(c.reg)
	c.cron = scheduler.NewCron(nil, c.reg, c.log)
	return c
}

// Start loads the queue, then polls it on the schedule and ticks the elapsed
// timers every second.
func (c *Console) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return nil
	}

	_ = c.Reload(ctx)

	poll, err := c.cron.Add("assignment-poll", c.schedule, scheduler.FuncJob(func(ctx context.Context) {
		_ = c.Reload(ctx)
	}))
	if err != nil {
		return errors.Wrapf(err, "invalid assignment schedule %q", c.schedule)
	}
	tick := c.sched.Every("elapsed-tick", c.tick, scheduler.FuncJob(func(context.Context) {
		c.publish("tick")
	}))
	c.cron.Start()

	c.handles = []scheduler.Handle{poll, tick}
	c.running = true
	c.log.Info("agency console started", zap.String("schedule", c.schedule))
	return nil
}

// Stop halts the poll and the tick. It is safe to call more than once.
func (c *Console) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	for _, h := range c.handles {
		h.Stop()
	}
	c.handles = nil
	c.cron.Stop()
	c.running = false
}

// ActiveHandles is the number of live timers.
func (c *Console) ActiveHandles() int { return c.reg.Count() }

func (c *Console) Subscribe() *sse.Subscription { return c.hub.Subscribe(Topic) }

// Hub is the hub change events are published on.
func (c *Console) Hub() *sse.Hub { return c.hub }

func (c *Console) publish(name string) {
	if err := c.hub.Publish(Topic, name, c.View(c.now())); err != nil {
		c.log.Debug("publish failed", zap.String("event", name), zap.Error(err))
	}
}

// Reload fetches the queue. A failure keeps the previous list.
func (c *Console) Reload(ctx context.Context) error {
	list, err := c.api.AgencyAssignments(ctx)
	if err != nil {
		c.metrics.IncPoll("agency_assignments", "error")
		c.mu.Lock()
		c.listError = message(err, "error.load_assignments")
		c.mu.Unlock()
		c.publish("list_error")
		return err
	}
	c.metrics.IncPoll("agency_assignments", "ok")

	c.mu.Lock()
	c.assignments = list
	c.listError = ""
	first := !c.loaded
	c.loaded = true
	selectFirst := first && c.selectedID == 0 && len(list) > 0
	c.mu.Unlock()
	c.publish("list")

	if selectFirst {
		c.Select(ctx, list[0].ID)
	}
	return nil
}

// Select shows one assignment and loads its location. The last known location
// stays visible while the fetch is in flight.
func (c *Console) Select(ctx context.Context, assignmentID int64) {
	key := locationKey(assignmentID)
	var cached *models.AssignmentLocation
	if v, ok := c.locations.Get(ctx, key); ok {
		cached, _ = v.(*models.AssignmentLocation)
	}

	c.mu.Lock()
	c.selectedID = assignmentID
	c.location = cached
	c.statusMessage = ""
	c.statusError = ""
	c.mu.Unlock()
	c.publish("selected")

	loc, err := c.api.AssignmentLocation(ctx, assignmentID)
	c.mu.Lock()
	if c.selectedID != assignmentID {
		// 用户已切换到别的条目
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.location = nil
	} else {
		c.location = loc
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("assignment location failed", zap.Int64("assignment_id", assignmentID), zap.Error(err))
	} else {
		_ = c.locations.Set(ctx, key, loc, 0)
	}
	c.publish("location")
}

func locationKey(id int64) string { return "assignment:" + strconv.FormatInt(id, 10) + ":location" }

func (c *Console) find(assignmentID int64) (models.Assignment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.assignments {
		if a.ID == assignmentID {
			return *a.Clone(), true
		}
	}
	return models.Assignment{}, false
}

// Acknowledge submits the form for an assignment. An assignment that already
// carries an acknowledgment is rejected without a request.
func (c *Console) Acknowledge(ctx context.Context, assignmentID int64, form AckForm) (*models.Acknowledgment, error) {
	if a, ok := c.find(assignmentID); ok && a.Acknowledged() {
		return nil, ErrAlreadyAcknowledged
	}

	by := strings.TrimSpace(form.AcknowledgedBy)
	if by == "" {
		return nil, errors.Validation(errors.FieldError{Field: "acknowledged_by", Message: i18n.M("validation.acknowledged_by")})
	}
	req := models.AcknowledgeRequest{AcknowledgedBy: by}
	if form.EstimatedArrival > 0 {
		eta := form.EstimatedArrival
		req.EstimatedArrival = &eta
	}
	if s := strings.TrimSpace(form.ResponseMessage); s != "" {
		req.ResponseMessage = s
	}
	if s := strings.TrimSpace(form.ResponderContact); s != "" {
		req.ResponderContact = s
	}

	ack, err := c.api.AcknowledgeAssignment(ctx, assignmentID, req)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.statusMessage = i18n.M("agency.ack_submitted")
	c.mu.Unlock()
	c.log.Info("assignment acknowledged", zap.Int64("assignment_id", assignmentID), zap.String("by", by))

	_ = c.Reload(ctx)
	return ack, nil
}

// UpdateStatus moves the assignment's alert to RESPONDING or RESOLVED.
func (c *Console) UpdateStatus(ctx context.Context, assignmentID int64, status models.AlertStatus) error {
	if status != models.StatusResponding && status != models.StatusResolved {
		err := errors.Validation(errors.FieldError{Field: "status", Message: i18n.M("validation.status_update")})
		c.setStatusResult("", err.Message)
		return err
	}

	if _, err := c.api.UpdateAssignmentStatus(ctx, assignmentID, status); err != nil {
		c.setStatusResult("", message(err, "error.status_update"))
		return err
	}
	c.setStatusResult(i18n.M("agency.status_updated", map[string]interface{}{"Status": status}), "")
	_ = c.Reload(ctx)
	return nil
}

func (c *Console) setStatusResult(msg, errMsg string) {
	c.mu.Lock()
	c.statusMessage = msg
	c.statusError = errMsg
	c.mu.Unlock()
	c.publish("status")
}

func message(err error, fallbackKey string) string {
	if msg := errors.GetMessage(err); msg != "" {
		return msg
	}
	return i18n.M(fallbackKey)
}
