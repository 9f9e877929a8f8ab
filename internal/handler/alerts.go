package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LiveGuard/internal/models"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func (h *Handlers) handleCreateAlert(c *gin.Context) {
	var req models.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}

	fields := gin.H{}
	if !req.AlertType.Valid() {
		fields["alert_type"] = []string{fmt.Sprintf("%q is not a valid choice.", req.AlertType)}
	}
	if !req.Priority.Valid() {
		fields["priority_level"] = []string{fmt.Sprintf("%q is not a valid choice.", req.Priority)}
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		fields["latitude"] = []string{"Latitude must be between -90 and 90."}
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		fields["longitude"] = []string{"Longitude must be between -180 and 180."}
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, fields)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.nextAlertID++
	rec := &alertRecord{
		userID: currentAccount(c).profile.ID,
		alert: models.Alert{
			ID:          h.nextAlertID,
			AlertType:   req.AlertType,
			Priority:    req.Priority,
			Description: req.Description,
			Status:      models.StatusPending,
			Location: &models.AlertLocation{
				ID:         h.nextAlertID,
				Latitude:   models.Coordinate(req.Latitude),
				Longitude:  models.Coordinate(req.Longitude),
				Accuracy:   req.Accuracy,
				CapturedAt: now,
			},
			Assignments: []models.Assignment{},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	h.alerts[rec.alert.ID] = rec

	// 响应是派发前的快照，之后的状态查询才会看到 DISPATCHED
	created := rec.alert.Clone()
	h.dispatch(rec, dispatchTargets[req.AlertType])

	h.log.Info("alert created", zap.Int64("alert_id", created.ID), zap.String("type", string(created.AlertType)))
	c.JSON(http.StatusCreated, created)
}

// dispatch assigns every active agency of the given types. Caller holds h.mu.
func (h *Handlers) dispatch(rec *alertRecord, types []models.AgencyType) {
	ids := make([]int64, 0, len(h.agencies))
	for id := range h.agencies {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		ag := h.agencies[id]
		if !ag.IsActive || !slices.Contains(types, ag.Type) {
			continue
		}
		h.assign(rec, ag)
	}
	rec.alert.Status = models.StatusDispatched
	rec.alert.UpdatedAt = h.now()
}

// assign creates one assignment and its notification log. Caller holds h.mu.
func (h *Handlers) assign(rec *alertRecord, ag *models.AgencyRecord) models.Assignment {
	h.nextAssignmentID++
	a := models.Assignment{
		ID: h.nextAssignmentID,
		Agency: models.Agency{
			ID:           ag.ID,
			Name:         ag.Name,
			Type:         ag.Type,
			ContactPhone: ag.ContactPhone,
		},
		AssignedAt:         h.now(),
		NotificationStatus: models.NotificationSent,
		Priority:           assignmentPriority(rec.alert.Priority),
	}
	rec.alert.Assignments = append(rec.alert.Assignments, a)

	for _, channel := range []string{"PUSH", "SMS"} {
		h.nextNotificationID++
		h.notifications = append(h.notifications, models.Notification{
			ID:           h.nextNotificationID,
			AssignmentID: a.ID,
			Channel:      channel,
			Status:       "SENT",
			Recipient:    ag.ContactPhone,
			Message:      fmt.Sprintf("EMERGENCY %s alert #%d", rec.alert.AlertType, rec.alert.ID),
			SentAt:       h.now(),
		})
	}
	return a
}

// ownAlert loads the caller's alert or writes 404. Caller holds h.mu.
func (h *Handlers) ownAlert(c *gin.Context, id int64) (*alertRecord, bool) {
	rec, ok := h.alerts[id]
	if !ok || rec.userID != currentAccount(c).profile.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found."})
		return nil, false
	}
	return rec, true
}

func (h *Handlers) handleAlertStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.alerts[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found."})
		return
	}
	acc := currentAccount(c)
	if rec.userID != acc.profile.ID && acc.profile.Role != models.RoleAgency {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied."})
		return
	}
	c.JSON(http.StatusOK, rec.alert.Clone())
}

func (h *Handlers) handleAlertHistory(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	uid := currentAccount(c).profile.ID
	out := make([]models.Alert, 0)
	for _, rec := range h.alerts {
		if rec.userID != uid {
			continue
		}
		a := rec.alert.Clone()
		// the list serializer carries no assignments
		a.Assignments = nil
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b models.Alert) int { return b.CreatedAt.Compare(a.CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleUpdateLocation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.ownAlert(c, id)
	if !ok {
		return
	}
	if rec.alert.Status.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Location cannot be updated for a resolved or cancelled alert."})
		return
	}

	lat, latOK := body["latitude"].(float64)
	lon, lonOK := body["longitude"].(float64)
	if !latOK || !lonOK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required."})
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates."})
		return
	}

	loc := rec.alert.Location
	if loc == nil {
		loc = &models.AlertLocation{ID: rec.alert.ID}
		rec.alert.Location = loc
	}
	loc.Latitude, loc.Longitude = models.Coordinate(lat), models.Coordinate(lon)
	if acc, ok := body["accuracy"].(float64); ok {
		loc.Accuracy = &acc
	}
	loc.CapturedAt = h.now()

	c.JSON(http.StatusOK, gin.H{
		"latitude":  strconv.FormatFloat(lat, 'f', 7, 64),
		"longitude": strconv.FormatFloat(lon, 'f', 7, 64),
		"accuracy":  loc.Accuracy,
		"maps_url":  mapsURL(lat, lon),
	})
}

func (h *Handlers) handleCancelAlert(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.ownAlert(c, id)
	if !ok {
		return
	}
	if !rec.alert.Status.Cancellable() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Cannot cancel an alert with status '%s'.", rec.alert.Status)})
		return
	}
	rec.alert.Status = models.StatusCancelled
	rec.alert.UpdatedAt = h.now()

	c.JSON(http.StatusOK, models.CancelResponse{Message: "Alert cancelled.", AlertID: id})
}

func (h *Handlers) handleRateAlert(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"rating": []string{"Rating must be between 1 and 5."}})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.ownAlert(c, id)
	if !ok {
		return
	}
	if rec.alert.Status != models.StatusResolved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only resolved alerts can be rated."})
		return
	}
	if rec.alert.Rating != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This alert has already been rated."})
		return
	}
	r := req.Rating
	rec.alert.Rating = &r
	c.JSON(http.StatusOK, rec.alert.Clone())
}

func mapsURL(lat, lon float64) string {
	return "https://maps.google.com/?q=" + strings.Join([]string{
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
	}, ",")
}
