package apiclient

import (
	"context"
	"net/http"

	"LiveGuard/internal/models"
)

// CreateAlert POST /api/alerts/create/
func (c *Client) CreateAlert(ctx context.Context, req models.CreateAlertRequest) (*models.Alert, error) {
	var out models.Alert
	r := newRequest(http.MethodPost, "/api/alerts/create/").with(req).fallbackTo("error.create_alert")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AlertStatus GET /api/alerts/{id}/status/
func (c *Client) AlertStatus(ctx context.Context, alertID int64) (*models.Alert, error) {
	var out models.Alert
	r := newRequest(http.MethodGet, "/api/alerts/{id}/status/", alertID).fallbackTo("error.alert_status")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AlertHistory GET /api/alerts/history/
func (c *Client) AlertHistory(ctx context.Context) ([]models.Alert, error) {
	var out models.List[models.Alert]
	r := newRequest(http.MethodGet, "/api/alerts/history/").fallbackTo("error.alert_history")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelAlert PUT /api/alerts/{id}/cancel/. The server answers with
// {message, alert_id} only.
func (c *Client) CancelAlert(ctx context.Context, alertID int64) (*models.CancelResponse, error) {
	var out models.CancelResponse
	r := newRequest(http.MethodPut, "/api/alerts/{id}/cancel/", alertID).fallbackTo("error.cancel_alert")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RateAlert PATCH /api/alerts/{id}/rate/
func (c *Client) RateAlert(ctx context.Context, alertID int64, rating int) error {
	r := newRequest(http.MethodPatch, "/api/alerts/{id}/rate/", alertID).
		with(models.RateRequest{Rating: rating}).
		fallbackTo("error.rate_alert")
	return c.call(ctx, r, nil)
}

// UpdateAlertLocation PATCH /api/alerts/{id}/location/
func (c *Client) UpdateAlertLocation(ctx context.Context, alertID int64, loc models.LocationUpdate) error {
	r := newRequest(http.MethodPatch, "/api/alerts/{id}/location/", alertID).
		with(loc).
		fallbackTo("error.update_location")
	return c.call(ctx, r, nil)
}
