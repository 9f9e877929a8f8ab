package agency

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveGuard/internal/apiclient/apiclienttest"
	handlers "LiveGuard/internal/handler"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/sse"
)

const listPath = "/api/agency/alerts/"

type fixture struct {
	civilian *apiclienttest.Env
	agency   *apiclienttest.Env
	console  *Console
}

func setup(t *testing.T, alerts int, opts ...Option) *fixture {
	civ := apiclienttest.New(t)
	civ.LoginAs(t, handlers.CivilianEmail)
	ag := civ.Peer(t)
	ag.LoginAs(t, handlers.AgencyEmail)

	for i := 0; i < alerts; i++ {
		_, err := civ.Client.CreateAlert(context.Background(), models.CreateAlertRequest{
			AlertType: models.AlertTypeFireIncidence,
			Priority:  models.PriorityHigh,
			Latitude:  6.5 + float64(i)/100,
			Longitude: 3.3,
		})
		require.NoError(t, err)
	}
	c := NewConsole(ag.Client, opts...)
	t.Cleanup(c.Stop)
	return &fixture{civilian: civ, agency: ag, console: c}
}

func TestReloadSelectsFirstAndKeepsListOnError(t *testing.T) {
	fx := setup(t, 2)
	ctx := context.Background()

	require.NoError(t, fx.console.Reload(ctx))
	v := fx.console.View(time.Now())
	require.Len(t, v.Entries, 2)
	require.NotNil(t, v.Selected)
	assert.Equal(t, v.Entries[0].Assignment.ID, v.Selected.Assignment.ID)
	assert.True(t, v.Entries[0].Selected)
	assert.Equal(t, "HIGH", v.Entries[0].Badge)
	assert.Equal(t, "FIRE/RESCUE", v.Entries[0].AgencyLabel)
	require.NotNil(t, v.Selected.Location)
	assert.True(t, v.Selected.AckFormVisible)

	fx.agency.API.InjectFault(http.MethodGet, listPath, handlers.Fault{
		Status: http.StatusInternalServerError,
		Body:   map[string]string{"detail": "Upstream down"},
	})
	require.Error(t, fx.console.Reload(ctx))
	v = fx.console.View(time.Now())
	assert.Equal(t, "Upstream down", v.ListError)
	assert.Len(t, v.Entries, 2)

	fx.agency.API.ClearFaults()
	require.NoError(t, fx.console.Reload(ctx))
	assert.Empty(t, fx.console.View(time.Now()).ListError)
}

func TestListErrorFallback(t *testing.T) {
	fx := setup(t, 0)
	fx.agency.API.InjectFault(http.MethodGet, listPath, handlers.Fault{Status: http.StatusBadGateway})

	require.Error(t, fx.console.Reload(context.Background()))
	assert.Equal(t, "Failed to load alerts.", fx.console.View(time.Now()).ListError)
}

func TestAcknowledgeAtMostOnce(t *testing.T) {
	fx := setup(t, 1)
	ctx := context.Background()
	require.NoError(t, fx.console.Reload(ctx))
	id := fx.console.View(time.Now()).Entries[0].Assignment.ID
	ackPath := fmt.Sprintf("/api/agency/alerts/%d/acknowledge/", id)

	_, err := fx.console.Acknowledge(ctx, id, AckForm{AcknowledgedBy: "   "})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, "Acknowledged By is required.", err.Error())
	assert.Zero(t, fx.agency.API.Calls(http.MethodPost, ackPath))

	ack, err := fx.console.Acknowledge(ctx, id, AckForm{AcknowledgedBy: " Station 4 ", ResponseMessage: "  "})
	require.NoError(t, err)
	assert.Equal(t, "Station 4", ack.AcknowledgedBy)
	assert.Nil(t, ack.EstimatedArrival)
	assert.Empty(t, ack.ResponseMessage)

	v := fx.console.View(time.Now())
	require.NotNil(t, v.Selected)
	assert.False(t, v.Selected.AckFormVisible)
	require.NotNil(t, v.Selected.Ack)
	require.Len(t, v.Selected.Activity, 3)
	assert.Equal(t, "Station 4 acknowledged", v.Selected.Activity[2].Text)
	assert.Equal(t, 2*time.Second, v.Selected.Activity[1].At.Sub(v.Selected.Activity[0].At))
	assert.Equal(t, "Acknowledgment submitted. Civilian has been notified.", v.StatusMessage)

	_, err = fx.console.Acknowledge(ctx, id, AckForm{AcknowledgedBy: "Station 5"})
	assert.ErrorIs(t, err, ErrAlreadyAcknowledged)
	assert.Equal(t, 1, fx.agency.API.Calls(http.MethodPost, ackPath))
}

func TestAcknowledgeWithETA(t *testing.T) {
	fx := setup(t, 1)
	ctx := context.Background()
	require.NoError(t, fx.console.Reload(ctx))
	id := fx.console.View(time.Now()).Entries[0].Assignment.ID

	_, err := fx.console.Acknowledge(ctx, id, AckForm{AcknowledgedBy: "Unit 9", EstimatedArrival: 12, ResponderContact: "+2348099999999"})
	require.NoError(t, err)

	v := fx.console.View(time.Now())
	assert.Equal(t, "Unit 9 acknowledged - ETA 12 min", v.Selected.Activity[2].Text)
	assert.Equal(t, models.StatusAcknowledged, v.Entries[0].Assignment.Alert.Status)
}

func TestUpdateStatus(t *testing.T) {
	fx := setup(t, 1)
	ctx := context.Background()
	require.NoError(t, fx.console.Reload(ctx))
	id := fx.console.View(time.Now()).Entries[0].Assignment.ID

	err := fx.console.UpdateStatus(ctx, id, models.StatusCancelled)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, "Status must be RESPONDING or RESOLVED.", fx.console.View(time.Now()).StatusError)

	require.NoError(t, fx.console.UpdateStatus(ctx, id, models.StatusResponding))
	v := fx.console.View(time.Now())
	assert.Equal(t, "Status updated to RESPONDING.", v.StatusMessage)
	assert.Empty(t, v.StatusError)
	assert.Equal(t, models.StatusResponding, v.Entries[0].Assignment.Alert.Status)

	fx.agency.API.InjectFault(http.MethodPut, fmt.Sprintf("/api/agency/alerts/%d/status/", id), handlers.Fault{Status: http.StatusInternalServerError})
	require.Error(t, fx.console.UpdateStatus(ctx, id, models.StatusResolved))
	v = fx.console.View(time.Now())
	assert.Equal(t, "Status update failed.", v.StatusError)
	require.NotNil(t, v.Selected)
	assert.Equal(t, id, v.Selected.Assignment.ID)
}

func nextEvent(t *testing.T, sub *sse.Subscription) (string, View) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		var v View
		require.NoError(t, ev.Decode(&v))
		return ev.Name, v
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return "", View{}
}

func TestSelectServesCachedLocationWhileLoading(t *testing.T) {
	fx := setup(t, 1)
	ctx := context.Background()
	require.NoError(t, fx.console.Reload(ctx))
	id := fx.console.View(time.Now()).Entries[0].Assignment.ID

	fx.agency.API.InjectFault(http.MethodGet, fmt.Sprintf("/api/agency/alerts/%d/location/", id), handlers.Fault{Status: http.StatusInternalServerError})
	sub := fx.console.Subscribe()
	defer sub.Close()

	fx.console.Select(ctx, id)

	name, v := nextEvent(t, sub)
	assert.Equal(t, "selected", name)
	require.NotNil(t, v.Selected.Location)
	assert.InDelta(t, 6.5, v.Selected.Location.Latitude.Float(), 1e-9)

	name, v = nextEvent(t, sub)
	assert.Equal(t, "location", name)
	assert.Nil(t, v.Selected.Location)
}

func TestStartStop(t *testing.T) {
	fx := setup(t, 1, WithSchedule("@every 1h"), WithTick(5*time.Millisecond))
	sub := fx.console.Subscribe()
	defer sub.Close()

	require.NoError(t, fx.console.Start(context.Background()))
	require.NoError(t, fx.console.Start(context.Background()))
	assert.Equal(t, 2, fx.console.ActiveHandles())
	assert.Equal(t, 1, fx.agency.API.Calls(http.MethodGet, listPath))

	deadline := time.After(time.Second)
	for ticked := false; !ticked; {
		select {
		case ev := <-sub.Events():
			ticked = ev.Name == "tick"
		case <-deadline:
			t.Fatal("no tick")
		}
	}

	fx.console.Stop()
	fx.console.Stop()
	assert.Zero(t, fx.console.ActiveHandles())
}

func TestBadSchedule(t *testing.T) {
	fx := setup(t, 0, WithSchedule("every now and then"))
	require.Error(t, fx.console.Start(context.Background()))
	assert.Zero(t, fx.console.ActiveHandles())
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, "00:00", Elapsed(-5*time.Second))
	assert.Equal(t, "00:00", Elapsed(0))
	assert.Equal(t, "01:15", Elapsed(75*time.Second))
	assert.Equal(t, "62:03", Elapsed(62*time.Minute+3*time.Second+400*time.Millisecond))
}
