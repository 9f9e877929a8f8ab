package alertstore

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveGuard/internal/apiclient/apiclienttest"
	handlers "LiveGuard/internal/handler"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/util"
)

func newStore(t *testing.T) (*Store, *apiclienttest.Env, *util.Signals) {
	env := apiclienttest.New(t)
	env.LoginAs(t, handlers.CivilianEmail)
	sig := util.NewSignals()
	return New(env.Client, WithSignals(sig)), env, sig
}

func fireAlert() models.CreateAlertRequest {
	return models.CreateAlertRequest{
		AlertType: models.AlertTypeFireIncidence,
		Priority:  models.PriorityCritical,
		Latitude:  6.5243793,
		Longitude: 3.3792057,
	}
}

func TestCreateAndFetchStatus(t *testing.T) {
	s, env, sig := newStore(t)
	ctx := context.Background()

	var transitions [][2]models.AlertStatus
	sig.Connect(models.SigAlertStatusChanged, func(sender any, params ...any) {
		transitions = append(transitions, [2]models.AlertStatus{params[0].(models.AlertStatus), params[1].(models.AlertStatus)})
	})

	created, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, s.Snapshot().CurrentAlert.Status)

	_, err = s.FetchAlertStatus(ctx, created.ID)
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, models.StatusDispatched, snap.CurrentAlert.Status)
	assert.Equal(t, models.StatusDispatched, snap.AlertStatus.Status)
	require.Len(t, snap.AlertStatus.Assignments, 1)
	assert.Equal(t, models.NotificationSent, snap.AlertStatus.Assignments[0].NotificationStatus)
	assert.Nil(t, snap.AlertStatus.Assignments[0].Acknowledgment)

	// last fetched wins, even when it moves backwards
	env.API.SetAlertStatus(created.ID, models.StatusResponding)
	_, err = s.FetchAlertStatus(ctx, created.ID)
	require.NoError(t, err)
	env.API.SetAlertStatus(created.ID, models.StatusAcknowledged)
	_, err = s.FetchAlertStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, s.Snapshot().CurrentAlert.Status)

	assert.Equal(t, [][2]models.AlertStatus{
		{models.StatusPending, models.StatusDispatched},
		{models.StatusDispatched, models.StatusResponding},
		{models.StatusResponding, models.StatusAcknowledged},
	}, transitions)
}

func TestErrorIsolation(t *testing.T) {
	s, env, _ := newStore(t)
	ctx := context.Background()

	created, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)

	env.API.InjectFault(http.MethodGet, "/api/alerts/history/", handlers.Fault{Status: http.StatusInternalServerError, Body: map[string]string{}, Times: 1})
	_, err = s.FetchAlertHistory(ctx)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, "Failed to fetch history", snap.HistoryError)
	assert.Empty(t, snap.SubmitError)
	require.NotNil(t, snap.CurrentAlert)
	assert.Equal(t, created.ID, snap.CurrentAlert.ID)

	env.API.InjectFault(http.MethodGet, "/api/alerts/999/status/", handlers.Fault{Status: http.StatusNotFound, Body: map[string]string{"error": "Alert not found."}, Times: 1})
	_, err = s.FetchAlertStatus(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, "Alert not found.", s.Snapshot().StatusError)

	// a successful history retry clears only its own slot
	_, err = s.FetchAlertHistory(ctx)
	require.NoError(t, err)
	snap = s.Snapshot()
	assert.Empty(t, snap.HistoryError)
	assert.Equal(t, "Alert not found.", snap.StatusError)
	assert.Equal(t, created.ID, snap.CurrentAlert.ID)

	s.ClearStatusError()
	assert.Empty(t, s.Snapshot().StatusError)
}

func TestSubmitFailureLeavesState(t *testing.T) {
	s, env, _ := newStore(t)
	ctx := context.Background()

	first, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)

	env.API.InjectFault(http.MethodPost, "/api/alerts/create/", handlers.Fault{Status: http.StatusInternalServerError, Body: "", Times: 1})
	_, err = s.CreateAlert(ctx, fireAlert())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, first.ID, snap.CurrentAlert.ID)
	assert.Equal(t, "Failed to send alert. Please try again.", snap.SubmitError)
	assert.False(t, snap.Submitting)

	_, err = s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().SubmitError)
}

func TestHistorySortedNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	env := apiclienttest.New(t, handlers.WithClock(func() time.Time { return clock }))
	env.LoginAs(t, handlers.CivilianEmail)
	s := New(env.Client, WithSignals(util.NewSignals()))
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		clock = now.Add(time.Duration(i) * time.Minute)
		a, err := s.CreateAlert(ctx, fireAlert())
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	list, err := s.FetchAlertHistory(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{list[0].ID, list[1].ID, list[2].ID})
}

func TestCancelPatchesCurrentAlert(t *testing.T) {
	s, env, _ := newStore(t)
	ctx := context.Background()

	created, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)

	require.NoError(t, s.CancelAlert(ctx, created.ID))
	assert.Equal(t, models.StatusCancelled, s.Snapshot().CurrentAlert.Status)
	assert.Empty(t, s.Snapshot().CancelError)

	// terminal alerts take no more location updates and make no call
	before := env.API.Calls(http.MethodPatch, "/api/alerts/1/location/")
	require.NoError(t, s.UpdateAlertLocation(ctx, created.ID, 6.5, 3.3, nil))
	assert.Equal(t, before, env.API.Calls(http.MethodPatch, "/api/alerts/1/location/"))

	// the server refuses a second cancel
	err = s.CancelAlert(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "Cannot cancel an alert with status 'CANCELLED'.", s.Snapshot().CancelError)
}

func TestCancelOtherAlertDoesNotPatch(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	first, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)
	second, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)

	require.NoError(t, s.CancelAlert(ctx, first.ID))
	snap := s.Snapshot()
	assert.Equal(t, second.ID, snap.CurrentAlert.ID)
	assert.NotEqual(t, models.StatusCancelled, snap.CurrentAlert.Status)
}

func TestRateAlert(t *testing.T) {
	s, env, _ := newStore(t)
	ctx := context.Background()

	err := s.RateAlert(ctx, 1, 6)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, env.API.Calls(http.MethodPatch, "/api/alerts/1/rate/"))

	created, err := s.CreateAlert(ctx, fireAlert())
	require.NoError(t, err)

	// not resolved yet: best-effort failure, no slot
	err = s.RateAlert(ctx, created.ID, 4)
	require.Error(t, err)
	snap := s.Snapshot()
	assert.Empty(t, snap.SubmitError)
	assert.Empty(t, snap.StatusError)

	env.API.SetAlertStatus(created.ID, models.StatusResolved)
	_, err = s.FetchAlertStatus(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, s.RateAlert(ctx, created.ID, 4))
	require.NotNil(t, s.Snapshot().CurrentAlert.Rating)
	assert.Equal(t, 4, *s.Snapshot().CurrentAlert.Rating)
}

func TestSubscribeAndReset(t *testing.T) {
	s, _, _ := newStore(t)
	sub := s.Subscribe()
	defer sub.Close()

	_, err := s.CreateAlert(context.Background(), fireAlert())
	require.NoError(t, err)
	s.Reset()

	var kinds []EventKind
	for len(kinds) < 3 {
		select {
		case raw := <-sub.Events():
			ev, err := DecodeEvent(raw)
			require.NoError(t, err)
			kinds = append(kinds, ev.Kind)
			if ev.Kind == EventAlertCreated {
				require.NotNil(t, ev.Snapshot.CurrentAlert)
			}
		case <-time.After(time.Second):
			t.Fatalf("got only %v", kinds)
		}
	}
	assert.Equal(t, []EventKind{EventSubmitStarted, EventAlertCreated, EventReset}, kinds)
	assert.Nil(t, s.Snapshot().CurrentAlert)
}
