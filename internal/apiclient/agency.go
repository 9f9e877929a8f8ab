package apiclient

import (
	"context"
	"net/http"

	"LiveGuard/internal/models"
)

// AgencyAssignments lists the caller agency's assignments, newest first.
func (c *Client) AgencyAssignments(ctx context.Context) ([]models.Assignment, error) {
	var out models.List[models.Assignment]
	r := newRequest(http.MethodGet, "/api/agency/alerts/").fallbackTo("error.load_assignments")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AssignmentLocation(ctx context.Context, assignmentID int64) (*models.AssignmentLocation, error) {
	var out models.AssignmentLocation
	r := newRequest(http.MethodGet, "/api/agency/alerts/{id}/location/", assignmentID)
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcknowledgeAssignment(ctx context.Context, assignmentID int64, req models.AcknowledgeRequest) (*models.Acknowledgment, error) {
	var out models.Acknowledgment
	r := newRequest(http.MethodPost, "/api/agency/alerts/{id}/acknowledge/", assignmentID).
		with(req).
		fallbackTo("error.acknowledge")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAssignmentStatus(ctx context.Context, assignmentID int64, status models.AlertStatus) (*models.StatusUpdateResponse, error) {
	var out models.StatusUpdateResponse
	r := newRequest(http.MethodPut, "/api/agency/alerts/{id}/status/", assignmentID).
		with(models.StatusUpdateRequest{Status: status}).
		fallbackTo("error.status_update")
	if err := c.call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
