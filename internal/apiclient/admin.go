package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"LiveGuard/internal/models"
)

// 管理端接口

func (c *Client) AdminDashboard(ctx context.Context) (*models.Dashboard, error) {
	var out models.Dashboard
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/dashboard/"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminAlerts lists alerts. Empty filter fields are not sent.
func (c *Client) AdminAlerts(ctx context.Context, f models.AdminAlertFilter) ([]models.Alert, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	r := newRequest(http.MethodGet, "/api/admin/alerts/")
	r.query = q

	var out models.List[models.Alert]
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminAlert(ctx context.Context, alertID int64) (*models.Alert, error) {
	var out models.Alert
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/alerts/{id}/", alertID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminAssign(ctx context.Context, alertID, agencyID int64) (*models.Message, error) {
	var out models.Message
	r := newRequest(http.MethodPost, "/api/admin/alerts/{id}/assign/", alertID).with(models.AssignRequest{AgencyID: agencyID})
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminAgencies(ctx context.Context) ([]models.AgencyRecord, error) {
	var out models.List[models.AgencyRecord]
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/agencies/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminAgency(ctx context.Context, agencyID int64) (*models.AgencyRecord, error) {
	var out models.AgencyRecord
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/agencies/{id}/", agencyID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminCreateAgency(ctx context.Context, a models.AgencyRecord) (*models.AgencyRecord, error) {
	var out models.AgencyRecord
	if err := c.call(ctx, newRequest(http.MethodPost, "/api/admin/agencies/").with(a), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminUpdateAgency replaces the agency (PUT).
func (c *Client) AdminUpdateAgency(ctx context.Context, agencyID int64, a models.AgencyRecord) (*models.AgencyRecord, error) {
	var out models.AgencyRecord
	if err := c.call(ctx, newRequest(http.MethodPut, "/api/admin/agencies/{id}/", agencyID).with(a), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminPatchAgency sends only the given fields (PATCH).
func (c *Client) AdminPatchAgency(ctx context.Context, agencyID int64, fields map[string]interface{}) (*models.AgencyRecord, error) {
	var out models.AgencyRecord
	if err := c.call(ctx, newRequest(http.MethodPatch, "/api/admin/agencies/{id}/", agencyID).with(fields), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminDeleteAgency(ctx context.Context, agencyID int64) error {
	return c.call(ctx, newRequest(http.MethodDelete, "/api/admin/agencies/{id}/", agencyID), nil)
}

func (c *Client) AdminUsers(ctx context.Context) ([]models.AdminUser, error) {
	var out models.List[models.AdminUser]
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/users/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminSetUserActive(ctx context.Context, userID int64, active bool) (*models.AdminUser, error) {
	var out models.AdminUser
	r := newRequest(http.MethodPatch, "/api/admin/users/{id}/", userID).with(map[string]bool{"is_active": active})
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminNotifications(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error) {
	q := url.Values{}
	if f.Channel != "" {
		q.Set("channel", f.Channel)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Assignment > 0 {
		q.Set("assignment", strconv.FormatInt(f.Assignment, 10))
	}
	r := newRequest(http.MethodGet, "/api/admin/notifications/")
	r.query = q

	var out models.List[models.Notification]
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminReports(ctx context.Context) (*models.Reports, error) {
	var out models.Reports
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/reports/"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminSettings(ctx context.Context) ([]models.SystemSetting, error) {
	var out models.List[models.SystemSetting]
	if err := c.call(ctx, newRequest(http.MethodGet, "/api/admin/settings/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminUpdateSettings(ctx context.Context, values map[string]string) (*models.SettingsUpdate, error) {
	var out models.SettingsUpdate
	if err := c.call(ctx, newRequest(http.MethodPatch, "/api/admin/settings/").with(values), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
