// Package handlers is an in-memory implementation of the LiveGuard REST
// contract. It backs cmd/mockapi for local demos and the httptest servers
// the client packages are tested against.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/middleware"
)

const ctxAccount = "liveguard.account"

type account struct {
	profile    models.Profile
	password   string
	agencyID   int64
	isActive   bool
	dateJoined time.Time
	pushToken  string
}

type alertRecord struct {
	alert  models.Alert
	userID int64
}

// Fault is a canned response served instead of the real handler.
type Fault struct {
	Status int
	// JSON-encoded as is; a string is sent as a JSON string body
	Body interface{}
	// number of requests to intercept, 0 for all
	Times int
}

type Handlers struct {
	mu  sync.Mutex
	now func() time.Time
	log *zap.Logger

	secret []byte

	accounts      map[int64]*account
	access        map[string]int64
	refresh       map[string]int64
	alerts        map[int64]*alertRecord
	agencies      map[int64]*models.AgencyRecord
	notifications []models.Notification
	settings      map[string]models.SystemSetting

	nextAlertID        int64
	nextAssignmentID   int64
	nextAckID          int64
	nextAgencyID       int64
	nextNotificationID int64

	faults   map[string]*Fault
	calls    map[string]int
	lastAuth map[string]string

	// per-user throttle on alert creation, off unless WithCreateThrottle
	createLimiter *middleware.RateLimiter
}

type Option func(*Handlers)

// WithClock overrides time.Now for created_at, assigned_at and token expiry.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// WithCreateThrottle limits each civilian to alert_creation_rate_limit new
// alerts per hour, as the production backend does.
func WithCreateThrottle() Option {
	return func(h *Handlers) {
		h.createLimiter = middleware.NewRateLimiter(nil, h.createRate, func(c *gin.Context) string {
			return strconv.FormatInt(currentAccount(c).profile.ID, 10)
		})
	}
}

func NewHandlers(opts ...Option) *Handlers {
	h := &Handlers{
		now:      time.Now,
		log:      logger.Named("mockapi"),
		secret:   []byte(uuid.NewString()),
		accounts: make(map[int64]*account),
		access:   make(map[string]int64),
		refresh:  make(map[string]int64),
		alerts:   make(map[int64]*alertRecord),
		agencies: make(map[int64]*models.AgencyRecord),
		settings: make(map[string]models.SystemSetting),
		faults:   make(map[string]*Fault),
		calls:    make(map[string]int),
		lastAuth: make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.seed()
	return h
}

// NewEngine returns a gin engine with every route registered.
func (h *Handlers) NewEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.Register(engine)
	return engine
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(h.recordCall, h.injectFaults)
	engine.GET("/health", h.HealthCheck)

	r := engine.Group("/api")
	h.registerAuthRoutes(r)
	h.registerAlertRoutes(r)
	h.registerAgencyRoutes(r)
	h.registerAdminRoutes(r)
}

func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login/", h.handleLogin)
		auth.POST("/token/refresh/", h.handleRefresh)
		auth.POST("/logout/", h.authRequired, h.handleLogout)
		auth.GET("/profile/", h.authRequired, h.handleProfile)
		auth.POST("/register-device/", h.authRequired, h.handleRegisterDevice)
	}
}

func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	create := []gin.HandlerFunc{h.handleCreateAlert}
	if h.createLimiter != nil {
		create = append([]gin.HandlerFunc{h.createLimiter.Middleware()}, create...)
	}

	alerts := r.Group("/alerts", h.authRequired)
	{
		alerts.POST("/create/", create...)
		alerts.GET("/history/", h.handleAlertHistory)
		alerts.GET("/:id/status/", h.handleAlertStatus)
		alerts.PATCH("/:id/location/", h.handleUpdateLocation)
		alerts.PUT("/:id/cancel/", h.handleCancelAlert)
		alerts.PATCH("/:id/rate/", h.handleRateAlert)
	}
}

func (h *Handlers) registerAgencyRoutes(r *gin.RouterGroup) {
	agency := r.Group("/agency", h.authRequired, h.roleRequired(models.RoleAgency))
	{
		agency.GET("/alerts/", h.handleAgencyAlerts)
		agency.GET("/alerts/:id/location/", h.handleAssignmentLocation)
		agency.POST("/alerts/:id/acknowledge/", h.handleAcknowledge)
		agency.PUT("/alerts/:id/status/", h.handleAssignmentStatus)
	}
}

func (h *Handlers) registerAdminRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", h.authRequired, h.roleRequired(models.RoleAdmin))
	{
		admin.GET("/dashboard/", h.handleDashboard)

		admin.GET("/agencies/", h.handleListAgencies)
		admin.POST("/agencies/", h.handleCreateAgency)
		admin.GET("/agencies/:id/", h.handleGetAgency)
		admin.PUT("/agencies/:id/", h.handleUpdateAgency)
		admin.PATCH("/agencies/:id/", h.handleUpdateAgency)
		admin.DELETE("/agencies/:id/", h.handleDeleteAgency)

		admin.GET("/alerts/", h.handleAdminAlerts)
		admin.GET("/alerts/:id/", h.handleAdminAlert)
		admin.POST("/alerts/:id/assign/", h.handleAssign)

		admin.GET("/users/", h.handleUsers)
		admin.PATCH("/users/:id/", h.handlePatchUser)

		admin.GET("/notifications/", h.handleNotifications)
		admin.GET("/reports/", h.handleReports)
		admin.GET("/settings/", h.handleSettings)
		admin.PATCH("/settings/", h.handleUpdateSettings)
	}
}

// --- middleware ---

func (h *Handlers) createRate() limiter.Rate {
	h.mu.Lock()
	v := h.settings["alert_creation_rate_limit"].Value
	h.mu.Unlock()
	return limiter.Rate{Period: time.Hour, Limit: cast.ToInt64(v)}
}

func callKey(method, path string) string { return method + " " + path }

func (h *Handlers) recordCall(c *gin.Context) {
	key := callKey(c.Request.Method, c.Request.URL.Path)
	h.mu.Lock()
	h.calls[key]++
	h.lastAuth[key] = c.GetHeader("Authorization")
	h.mu.Unlock()
	c.Next()
}

func (h *Handlers) injectFaults(c *gin.Context) {
	key := callKey(c.Request.Method, c.Request.URL.Path)
	h.mu.Lock()
	f, ok := h.faults[key]
	var status int
	var body interface{}
	if ok {
		status, body = f.Status, f.Body
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				delete(h.faults, key)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.Next()
}

func (h *Handlers) authRequired(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	h.mu.Lock()
	uid, ok := h.access[token]
	acc := h.accounts[uid]
	h.mu.Unlock()

	if token == "" || !ok || acc == nil || !acc.isActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		})
		return
	}
	c.Set(ctxAccount, acc)
	c.Next()
}

func (h *Handlers) roleRequired(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentAccount(c).profile.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
			return
		}
		c.Next()
	}
}

func currentAccount(c *gin.Context) *account {
	v, _ := c.Get(ctxAccount)
	acc, _ := v.(*account)
	if acc == nil {
		return &account{}
	}
	return acc
}

// --- test controls ---

// InjectFault makes the next f.Times requests to method+path return f.
func (h *Handlers) InjectFault(method, path string, f Fault) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults[callKey(method, path)] = &f
}

func (h *Handlers) ClearFaults() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults = make(map[string]*Fault)
}

// Calls reports how many requests reached method+path, faults included.
func (h *Handlers) Calls(method, path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[callKey(method, path)]
}

// LastAuthorization is the Authorization header of the latest request to
// method+path.
func (h *Handlers) LastAuthorization(method, path string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastAuth[callKey(method, path)]
}

// ExpireAccessTokens invalidates every issued access token. Refresh tokens
// keep working.
func (h *Handlers) ExpireAccessTokens() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.access = make(map[string]int64)
}

func (h *Handlers) RevokeRefreshTokens() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refresh = make(map[string]int64)
}

// SetAlertStatus moves an alert as the dispatch backend would.
func (h *Handlers) SetAlertStatus(alertID int64, status models.AlertStatus) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.alerts[alertID]
	if !ok {
		return false
	}
	rec.alert.Status = status
	rec.alert.UpdatedAt = h.now()
	return true
}

// Alert returns a copy of the stored alert.
func (h *Handlers) Alert(alertID int64) (*models.Alert, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.alerts[alertID]
	if !ok {
		return nil, false
	}
	return rec.alert.Clone(), true
}
