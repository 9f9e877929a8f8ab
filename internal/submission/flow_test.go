package submission

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LiveGuard/internal/alertstore"
	"LiveGuard/internal/apiclient/apiclienttest"
	"LiveGuard/internal/device"
	handlers "LiveGuard/internal/handler"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/notification"
)

const createPath = "/api/alerts/create/"

type fixture struct {
	env     *apiclienttest.Env
	locator *device.Static
	flow    *Flow
	links   []string
}

func setup(t *testing.T) *fixture {
	env := apiclienttest.New(t)
	env.LoginAs(t, handlers.CivilianEmail)

	fx := &fixture{env: env, locator: device.NewStatic(6.52437934999, 3.37920567)}
	sms := notification.NewEmergencySMS(notification.SMSConfig{Platform: "android"},
		notification.LauncherFunc(func(ctx context.Context, link string) error {
			fx.links = append(fx.links, link)
			return nil
		}))
	fx.flow = NewFlow(alertstore.New(env.Client), env.Store, fx.locator, WithSMS(sms))
	return fx
}

func fireForm() Form {
	return Form{AlertType: models.AlertTypeFireIncidence, Priority: models.PriorityCritical, Description: " kitchen fire "}
}

func TestValidateRequiresTypeAndPriority(t *testing.T) {
	fx := setup(t)

	_, err := fx.flow.Submit(context.Background(), Form{}, Options{})
	require.Error(t, err)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, "Please select an emergency type", e.Field("alert_type"))
	assert.Equal(t, "Please select a priority level", e.Field("priority_level"))

	err = Validate(Form{AlertType: "FLOOD", Priority: models.PriorityLow})
	assert.True(t, errors.IsValidation(err))

	assert.Zero(t, fx.locator.CurrentCalls())
	assert.Zero(t, fx.env.API.Calls(http.MethodPost, createPath))
}

func TestOfflineRequiresConfirmation(t *testing.T) {
	fx := setup(t)
	offline := Options{Online: func() bool { return false }}

	_, err := fx.flow.Submit(context.Background(), fireForm(), offline)
	assert.ErrorIs(t, err, ErrOfflineConfirmationRequired)
	assert.Zero(t, fx.locator.CurrentCalls())

	offline.ConfirmOffline = true
	res, err := fx.flow.Submit(context.Background(), fireForm(), offline)
	require.NoError(t, err)
	assert.NotZero(t, res.AlertID())
}

func TestSubmitRoundsCoordinates(t *testing.T) {
	fx := setup(t)
	fx.locator.SetAddress(device.Address{Street: "12 Marina", City: "Lagos", Country: "Nigeria"})
	ctx := context.Background()

	res, err := fx.flow.Submit(ctx, fireForm(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "12 Marina, Lagos, Nigeria", res.Address)
	assert.Equal(t, models.StatusPending, res.Alert.Status)

	stored, ok := fx.env.API.Alert(res.AlertID())
	require.True(t, ok)
	assert.Equal(t, 6.5243793, stored.Location.Latitude.Float())
	assert.Equal(t, 3.3792057, stored.Location.Longitude.Float())
	assert.Equal(t, "kitchen fire", stored.Description)

	p, err := fx.env.Store.PendingAlert(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLocationFailureSavesPartialPending(t *testing.T) {
	fx := setup(t)
	fx.locator.FailWith(stderrors.New("gps timeout"))
	ctx := context.Background()

	_, err := fx.flow.Submit(ctx, fireForm(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.Zero(t, fx.env.API.Calls(http.MethodPost, createPath))

	p, err := fx.env.Store.PendingAlert(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.AlertTypeFireIncidence, p.AlertType)
	assert.False(t, p.HasLocation())
	assert.NotNil(t, fx.flow.Banner())

	// a fresh mount prefills from the cache
	again := NewFlow(alertstore.New(fx.env.Client), fx.env.Store, fx.locator)
	m, err := again.Mount(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, m.Form.Priority)
	require.NotNil(t, m.Banner)

	require.NoError(t, again.DismissPending(ctx))
	assert.Nil(t, again.Banner())
	p, err = fx.env.Store.PendingAlert(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPermissionDenied(t *testing.T) {
	fx := setup(t)
	fx.locator.SetPermission(device.PermissionDenied)

	_, err := fx.flow.Submit(context.Background(), fireForm(), Options{})
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.Equal(t, "Location permission is required to send an alert.", errors.GetMessage(err))
	assert.Zero(t, fx.locator.CurrentCalls())
}

func TestSubmitFailureSavesFullPayload(t *testing.T) {
	fx := setup(t)
	fx.env.API.InjectFault(http.MethodPost, createPath, handlers.Fault{
		Status: http.StatusBadRequest,
		Body:   map[string]interface{}{"description": []string{"Too long."}},
	})
	ctx := context.Background()

	_, err := fx.flow.Submit(ctx, fireForm(), Options{})
	require.Error(t, err)
	assert.Equal(t, "description: Too long.", errors.GetMessage(err))
	assert.False(t, Retryable(err))

	p, err := fx.env.Store.PendingAlert(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.True(t, p.HasLocation())
	assert.Equal(t, 6.5243793, *p.Latitude)
	assert.Equal(t, "Address unavailable", p.Address)

	// resend succeeds and clears the cache
	fx.env.API.ClearFaults()
	_, err = fx.flow.Submit(ctx, fireForm(), Options{})
	require.NoError(t, err)
	p, err = fx.env.Store.PendingAlert(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, fx.flow.Banner())
}

func TestTransportFailureIsRetryable(t *testing.T) {
	fx := setup(t)
	fx.env.Server.Close()

	_, err := fx.flow.Submit(context.Background(), fireForm(), Options{})
	require.Error(t, err)
	assert.True(t, Retryable(err))
}

func TestNotifyContacts(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	res, err := fx.flow.Submit(ctx, fireForm(), Options{})
	require.NoError(t, err)

	// no contacts, nothing launched
	assert.Empty(t, fx.flow.NotifyContacts(ctx, res.Alert, res.Address))

	_, err = fx.flow.AddContact(ctx, "Mum", "+234 803 000 0002")
	require.NoError(t, err)
	_, err = fx.flow.AddContact(ctx, "Bola", "+2348030000003")
	require.NoError(t, err)

	link := fx.flow.NotifyContacts(ctx, res.Alert, res.Address)
	require.Len(t, fx.links, 1)
	assert.Equal(t, link, fx.links[0])
	assert.True(t, strings.HasPrefix(link, "sms:+2348030000002,+2348030000003?body=EMERGENCY"))
	assert.Contains(t, link, "FIRE_INCIDENCE")

	list, err := fx.flow.Contacts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NoError(t, fx.flow.RemoveContact(ctx, list[0].ID))
	list, err = fx.flow.Contacts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
