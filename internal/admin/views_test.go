package admin

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveGuard/internal/apiclient/apiclienttest"
	handlers "LiveGuard/internal/handler"
	"LiveGuard/internal/models"
)

func setup(t *testing.T) (*Views, *apiclienttest.Env, []int64) {
	civ := apiclienttest.New(t)
	civ.LoginAs(t, handlers.CivilianEmail)

	var ids []int64
	for _, typ := range []models.AlertType{models.AlertTypeFireIncidence, models.AlertTypeAccident, models.AlertTypeRobbery, models.AlertTypeOther} {
		a, err := civ.Client.CreateAlert(context.Background(), models.CreateAlertRequest{AlertType: typ, Priority: models.PriorityMedium, Latitude: 6.5, Longitude: 3.3})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	adm := civ.Peer(t)
	adm.LoginAs(t, handlers.AdminEmail)
	v, err := New(adm.Client)
	require.NoError(t, err)
	return v, adm, ids
}

func TestDashboardDerivedFields(t *testing.T) {
	v, env, ids := setup(t)
	require.True(t, env.API.SetAlertStatus(ids[0], models.StatusResolved))
	require.True(t, env.API.SetAlertStatus(ids[1], models.StatusCancelled))

	d, err := v.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, d.TotalAlerts)
	assert.Equal(t, 2, d.ActiveAlerts)
	require.NotNil(t, d.ResolutionRate)
	assert.Equal(t, 25.0, *d.ResolutionRate)
	assert.Equal(t, 1, d.AlertsByType[string(models.AlertTypeAccident)])
}

func TestAlertsFilterAndAssign(t *testing.T) {
	v, env, ids := setup(t)
	ctx := context.Background()
	require.True(t, env.API.SetAlertStatus(ids[2], models.StatusResolved))

	resolved, err := v.Alerts(ctx, models.AdminAlertFilter{Status: models.StatusResolved})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, ids[2], resolved[0].ID)

	ag, err := v.CreateAgency(ctx, models.AgencyRecord{Name: "Ikeja Fire Station", Type: models.AgencyFire, ContactPhone: "+2348012345699", IsActive: true})
	require.NoError(t, err)

	msg, err := v.Assign(ctx, ids[0], ag.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Alert #%d assigned to Ikeja Fire Station and dispatched.", ids[0]), msg)

	a, err := v.Alert(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, a.Assignments, 2)

	_, err = v.Assign(ctx, ids[0], ag.ID)
	assert.Error(t, err)
}

func TestAgencyCRUD(t *testing.T) {
	v, _, _ := setup(t)
	ctx := context.Background()

	_, err := v.CreateAgency(ctx, models.AgencyRecord{Type: models.AgencyPolice})
	require.Error(t, err)

	ag, err := v.CreateAgency(ctx, models.AgencyRecord{Name: "Surulere Division", Type: models.AgencyPolice, IsActive: true})
	require.NoError(t, err)

	patched, err := v.PatchAgency(ctx, ag.ID, map[string]interface{}{"is_active": false})
	require.NoError(t, err)
	assert.False(t, patched.IsActive)
	assert.Equal(t, "Surulere Division", patched.Name)

	updated, err := v.UpdateAgency(ctx, ag.ID, models.AgencyRecord{Name: "Surulere Area C", Type: models.AgencyPolice})
	require.NoError(t, err)
	assert.Equal(t, "Surulere Area C", updated.Name)

	got, err := v.Agency(ctx, ag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Surulere Area C", got.Name)

	require.NoError(t, v.DeleteAgency(ctx, ag.ID))
	_, err = v.Agency(ctx, ag.ID)
	assert.Error(t, err)

	list, err := v.Agencies(ctx)
	require.NoError(t, err)
	for _, a := range list {
		assert.NotEqual(t, ag.ID, a.ID)
	}
}

func TestUsersAndNotifications(t *testing.T) {
	v, _, _ := setup(t)
	ctx := context.Background()

	users, err := v.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, handlers.CivilianEmail, users[0].Email)

	u, err := v.SetUserActive(ctx, users[0].ID, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	sms, err := v.Notifications(ctx, models.NotificationFilter{Channel: "sms"})
	require.NoError(t, err)
	require.NotEmpty(t, sms)
	for _, n := range sms {
		assert.Equal(t, "SMS", n.Channel)
	}
}

func TestReportsAndSettingsAreCached(t *testing.T) {
	v, env, _ := setup(t)
	ctx := context.Background()

	_, err := v.Settings(ctx)
	require.NoError(t, err)
	settings, err := v.Settings(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, settings)
	assert.Equal(t, 1, env.API.Calls(http.MethodGet, "/api/admin/settings/"))

	res, err := v.UpdateSettings(ctx, map[string]string{"alert_creation_rate_limit": "10", "bogus": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alert_creation_rate_limit"}, res.Updated)
	assert.Contains(t, res.Errors, "bogus")

	settings, err = v.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, env.API.Calls(http.MethodGet, "/api/admin/settings/"))
	for _, s := range settings {
		if s.Key == "alert_creation_rate_limit" {
			assert.Equal(t, "10", s.Value)
		}
	}

	r1, err := v.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, r1.AlertVolume["all_time"])
	_, err = v.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.API.Calls(http.MethodGet, "/api/admin/reports/"))

	v.Invalidate(ctx)
	_, err = v.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, env.API.Calls(http.MethodGet, "/api/admin/reports/"))
}

func TestCacheDisabled(t *testing.T) {
	v, env, _ := setup(t)
	v.ttl = 0
	ctx := context.Background()

	_, err := v.Reports(ctx)
	require.NoError(t, err)
	_, err = v.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, env.API.Calls(http.MethodGet, "/api/admin/reports/"))
}
