package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"LiveGuard/internal/models"
)

// findAssignment locates the caller agency's assignment. Caller holds h.mu.
func (h *Handlers) findAssignment(c *gin.Context, id int64) (*alertRecord, *models.Assignment, bool) {
	agencyID := currentAccount(c).agencyID
	for _, rec := range h.alerts {
		for i := range rec.alert.Assignments {
			a := &rec.alert.Assignments[i]
			if a.ID == id && a.Agency.ID == agencyID {
				return rec, a, true
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found."})
	return nil, nil, false
}

func (h *Handlers) handleAgencyAlerts(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	agencyID := currentAccount(c).agencyID
	out := make([]models.Assignment, 0)
	for _, rec := range h.alerts {
		for _, a := range rec.alert.Assignments {
			if a.Agency.ID != agencyID {
				continue
			}
			cp := a.Clone()
			cp.Alert = &models.AlertSummary{
				ID:          rec.alert.ID,
				AlertType:   rec.alert.AlertType,
				Priority:    rec.alert.Priority,
				Status:      rec.alert.Status,
				Description: rec.alert.Description,
				CreatedAt:   rec.alert.CreatedAt,
			}
			out = append(out, *cp)
		}
	}
	slices.SortFunc(out, func(a, b models.Assignment) int {
		if d := b.AssignedAt.Compare(a.AssignedAt); d != 0 {
			return d
		}
		return int(b.ID - a.ID)
	})
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleAssignmentLocation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, _, ok := h.findAssignment(c, id)
	if !ok {
		return
	}
	loc := rec.alert.Location
	if loc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No location data for this alert."})
		return
	}
	c.JSON(http.StatusOK, models.AssignmentLocation{
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Accuracy:   loc.Accuracy,
		Address:    loc.Address,
		CapturedAt: loc.CapturedAt,
		MapsURL:    mapsURL(loc.Latitude.Float(), loc.Longitude.Float()),
	})
}

func (h *Handlers) handleAcknowledge(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, a, ok := h.findAssignment(c, id)
	if !ok {
		return
	}
	if a.Acknowledgment != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This assignment has already been acknowledged."})
		return
	}
	if strings.TrimSpace(req.AcknowledgedBy) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"acknowledged_by": []string{"This field may not be blank."}})
		return
	}
	if req.EstimatedArrival != nil && *req.EstimatedArrival < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"estimated_arrival": []string{"Ensure this value is greater than or equal to 0."}})
		return
	}

	now := h.now()
	h.nextAckID++
	a.Acknowledgment = &models.Acknowledgment{
		ID:               h.nextAckID,
		AcknowledgedBy:   strings.TrimSpace(req.AcknowledgedBy),
		Timestamp:        now,
		EstimatedArrival: req.EstimatedArrival,
		ResponseMessage:  req.ResponseMessage,
		ResponderContact: req.ResponderContact,
	}
	a.NotificationStatus = models.NotificationDelivered
	a.ResponseTime = &now

	rec.alert.Status = models.StatusAcknowledged
	rec.alert.UpdatedAt = now

	c.JSON(http.StatusCreated, a.Acknowledgment)
}

func (h *Handlers) handleAssignmentStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.StatusUpdateRequest
	_ = c.ShouldBindJSON(&req)
	if req.Status != models.StatusResponding && req.Status != models.StatusResolved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be one of: RESPONDING, RESOLVED."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, _, ok := h.findAssignment(c, id)
	if !ok {
		return
	}
	rec.alert.Status = req.Status
	rec.alert.UpdatedAt = h.now()

	c.JSON(http.StatusOK, models.StatusUpdateResponse{
		Message: fmt.Sprintf("Alert status updated to '%s'.", req.Status),
		AlertID: rec.alert.ID,
	})
}
