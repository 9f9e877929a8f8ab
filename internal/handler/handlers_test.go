package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveGuard/internal/models"
)

type harness struct {
	t      *testing.T
	h      *Handlers
	engine *gin.Engine
}

func newHarness(t *testing.T) *harness {
	h := NewHandlers()
	return &harness{t: t, h: h, engine: h.NewEngine()}
}

func (hs *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(hs.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	hs.engine.ServeHTTP(w, req)
	return w
}

func (hs *harness) login(email string) string {
	w := hs.do(http.MethodPost, "/api/auth/login/", "", models.LoginRequest{Email: email, Password: SeedPassword})
	require.Equal(hs.t, http.StatusOK, w.Code, w.Body.String())
	var resp models.LoginResponse
	require.NoError(hs.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Access
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLoginRejectsBadPassword(t *testing.T) {
	hs := newHarness(t)
	w := hs.do(http.MethodPost, "/api/auth/login/", "", models.LoginRequest{Email: CivilianEmail, Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "non_field_errors")

	w = hs.do(http.MethodPost, "/api/auth/login/", "", models.LoginRequest{Email: CivilianEmail, Password: SeedPassword, ClientType: "AGENCY"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAlertLifecycle(t *testing.T) {
	hs := newHarness(t)
	civ := hs.login(CivilianEmail)
	ag := hs.login(AgencyEmail)

	w := hs.do(http.MethodPost, "/api/alerts/create/", civ, models.CreateAlertRequest{
		AlertType: models.AlertTypeFireIncidence,
		Priority:  models.PriorityCritical,
		Latitude:  6.5243793,
		Longitude: 3.3792057,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Alert](t, w)
	assert.Equal(t, models.StatusPending, created.Status)

	w = hs.do(http.MethodGet, "/api/alerts/1/status/", civ, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.Alert](t, w)
	assert.Equal(t, models.StatusDispatched, status.Status)
	require.Len(t, status.Assignments, 1)
	assert.Equal(t, models.AgencyFire, status.Assignments[0].Agency.Type)
	assignmentID := status.Assignments[0].ID

	w = hs.do(http.MethodGet, "/api/agency/alerts/", ag, nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode[[]models.Assignment](t, w)
	require.Len(t, queue, 1)
	require.NotNil(t, queue[0].Alert)
	assert.Equal(t, created.ID, queue[0].Alert.ID)

	eta := 8
	ackPath := "/api/agency/alerts/" + itoa(assignmentID) + "/acknowledge/"
	w = hs.do(http.MethodPost, ackPath, ag, models.AcknowledgeRequest{AcknowledgedBy: "Unit 7", EstimatedArrival: &eta})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = hs.do(http.MethodPost, ackPath, ag, models.AcknowledgeRequest{AcknowledgedBy: "Unit 7"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a civilian cannot cancel once acknowledged
	w = hs.do(http.MethodPut, "/api/alerts/1/cancel/", civ, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = hs.do(http.MethodPut, "/api/agency/alerts/"+itoa(assignmentID)+"/status/", ag, models.StatusUpdateRequest{Status: models.StatusResolved})
	require.Equal(t, http.StatusOK, w.Code)

	w = hs.do(http.MethodPatch, "/api/alerts/1/rate/", civ, models.RateRequest{Rating: 5})
	assert.Equal(t, http.StatusOK, w.Code)
	w = hs.do(http.MethodPatch, "/api/alerts/1/rate/", civ, models.RateRequest{Rating: 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = hs.do(http.MethodPatch, "/api/alerts/1/location/", civ, models.LocationUpdate{Latitude: 6.5, Longitude: 3.3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFaultInjection(t *testing.T) {
	hs := newHarness(t)
	civ := hs.login(CivilianEmail)

	hs.h.InjectFault(http.MethodGet, "/api/alerts/history/", Fault{Status: http.StatusInternalServerError, Body: map[string]string{"error": "boom"}, Times: 1})

	w := hs.do(http.MethodGet, "/api/alerts/history/", civ, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = hs.do(http.MethodGet, "/api/alerts/history/", civ, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, hs.h.Calls(http.MethodGet, "/api/alerts/history/"))
	assert.Equal(t, "Bearer "+civ, hs.h.LastAuthorization(http.MethodGet, "/api/alerts/history/"))
}

func TestExpiredAccessTokenCanBeRefreshed(t *testing.T) {
	hs := newHarness(t)
	w := hs.do(http.MethodPost, "/api/auth/login/", "", models.LoginRequest{Email: CivilianEmail, Password: SeedPassword})
	pair := decode[models.LoginResponse](t, w)

	hs.h.ExpireAccessTokens()
	w = hs.do(http.MethodGet, "/api/auth/profile/", pair.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = hs.do(http.MethodPost, "/api/auth/token/refresh/", "", models.RefreshRequest{Refresh: pair.Refresh})
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode[models.RefreshResponse](t, w)

	w = hs.do(http.MethodGet, "/api/auth/profile/", fresh.Access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	hs := newHarness(t)
	admin := hs.login(AdminEmail)
	civ := hs.login(CivilianEmail)

	w := hs.do(http.MethodGet, "/api/admin/dashboard/", civ, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = hs.do(http.MethodGet, "/api/admin/dashboard/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode[models.Dashboard](t, w)
	assert.Equal(t, 5, dash.TotalAgencies)
	assert.Equal(t, 1, dash.TotalUsers)

	w = hs.do(http.MethodPost, "/api/admin/agencies/", admin, map[string]string{"agency_name": "", "agency_type": "NAVY"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = hs.do(http.MethodPatch, "/api/admin/agencies/2/", admin, map[string]interface{}{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.AgencyRecord](t, w).IsActive)

	w = hs.do(http.MethodPatch, "/api/admin/settings/", admin, map[string]string{"user_rate_limit": "50", "bogus": "1"})
	require.Equal(t, http.StatusOK, w.Code)
	upd := decode[models.SettingsUpdate](t, w)
	assert.Equal(t, []string{"user_rate_limit"}, upd.Updated)
	assert.Contains(t, upd.Errors, "bogus")

	w = hs.do(http.MethodPatch, "/api/admin/settings/", admin, map[string]string{"bogus": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = hs.do(http.MethodPatch, "/api/admin/users/1/", admin, map[string]interface{}{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	w = hs.do(http.MethodGet, "/api/alerts/history/", civ, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestCreateThrottle(t *testing.T) {
	h := NewHandlers(WithCreateThrottle())
	hs := &harness{t: t, h: h, engine: h.NewEngine()}
	civ := hs.login(CivilianEmail)
	admin := hs.login(AdminEmail)

	w := hs.do(http.MethodPatch, "/api/admin/settings/", admin, map[string]string{"alert_creation_rate_limit": "2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	create := func() *httptest.ResponseRecorder {
		return hs.do(http.MethodPost, "/api/alerts/create/", civ, models.CreateAlertRequest{
			AlertType: models.AlertTypeAccident,
			Priority:  models.PriorityLow,
			Latitude:  6.5,
			Longitude: 3.3,
		})
	}
	require.Equal(t, http.StatusCreated, create().Code)
	require.Equal(t, http.StatusCreated, create().Code)

	w = create()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Request was throttled.")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// 0 turns the throttle off
	w = hs.do(http.MethodPatch, "/api/admin/settings/", admin, map[string]string{"alert_creation_rate_limit": "0"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusCreated, create().Code)
}
