package apiclient

import (
	"context"
	"net/http"

	"LiveGuard/internal/models"
)

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	r := newRequest(http.MethodPost, "/api/auth/login/").with(req).fallbackTo("error.login")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, refresh string) error {
	r := newRequest(http.MethodPost, "/api/auth/logout/").with(models.RefreshRequest{Refresh: refresh})
	return c.call(ctx, r, nil)
}

func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var out models.Profile
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/auth/profile/"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterDevice stores the push token server-side. Callers treat failures
// as best-effort.
func (c *Client) RegisterDevice(ctx context.Context, pushToken string) error {
	r := newRequest(http.MethodPost, "/api/auth/register-device/").with(models.RegisterDeviceRequest{PushToken: pushToken})
	return c.call(ctx, r, nil)
}
