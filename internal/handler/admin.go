package handlers

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"LiveGuard/internal/models"
)

func (h *Handlers) handleDashboard(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := models.Dashboard{
		TotalAlerts:      len(h.alerts),
		TotalAgencies:    len(h.agencies),
		AlertsByStatus:   map[string]int{},
		AlertsByType:     map[string]int{},
		AlertsByPriority: map[string]int{},
	}
	for _, acc := range h.accounts {
		if acc.profile.Role == models.RoleCivilian {
			d.TotalUsers++
		}
	}

	var total float64
	var responded int
	for _, rec := range h.alerts {
		d.AlertsByStatus[string(rec.alert.Status)]++
		d.AlertsByType[string(rec.alert.AlertType)]++
		d.AlertsByPriority[string(rec.alert.Priority)]++
		for _, a := range rec.alert.Assignments {
			if a.ResponseTime != nil {
				total += a.ResponseTime.Sub(a.AssignedAt).Seconds()
				responded++
			}
		}
	}
	if responded > 0 {
		avg := math.Round(total / float64(responded))
		d.AvgAgencyResponseSeconds = &avg
	}
	c.JSON(http.StatusOK, d)
}

// --- agencies ---

func (h *Handlers) handleListAgencies(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.AgencyRecord, 0, len(h.agencies))
	for _, a := range h.agencies {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b models.AgencyRecord) int { return strings.Compare(a.Name, b.Name) })
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleCreateAgency(c *gin.Context) {
	var req models.AgencyRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}
	if msg := validateAgency(req); msg != nil {
		c.JSON(http.StatusBadRequest, msg)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextAgencyID++
	req.ID = h.nextAgencyID
	h.agencies[req.ID] = &req
	c.JSON(http.StatusCreated, req)
}

func validateAgency(a models.AgencyRecord) gin.H {
	fields := gin.H{}
	if strings.TrimSpace(a.Name) == "" {
		fields["agency_name"] = []string{"This field may not be blank."}
	}
	switch a.Type {
	case models.AgencyFire, models.AgencyPolice, models.AgencyMedical, models.AgencyMilitary, models.AgencySecurityForce:
	default:
		fields["agency_type"] = []string{fmt.Sprintf("%q is not a valid choice.", a.Type)}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (h *Handlers) agencyByID(c *gin.Context) (*models.AgencyRecord, bool) {
	id, ok := pathID(c)
	if !ok {
		return nil, false
	}
	a, ok := h.agencies[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agency not found."})
		return nil, false
	}
	return a, true
}

func (h *Handlers) handleGetAgency(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.agencyByID(c); ok {
		c.JSON(http.StatusOK, a)
	}
}

// handleUpdateAgency serves PUT and PATCH. PATCH applies only the keys sent.
func (h *Handlers) handleUpdateAgency(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.agencyByID(c)
	if !ok {
		return
	}
	next := *a
	if c.Request.Method == http.MethodPut {
		next = models.AgencyRecord{ID: a.ID, IsActive: true}
	}
	for k, v := range patch {
		switch k {
		case "agency_name":
			next.Name = cast.ToString(v)
		case "agency_type":
			next.Type = models.AgencyType(cast.ToString(v))
		case "contact_phone":
			next.ContactPhone = cast.ToString(v)
		case "contact_email":
			next.ContactEmail = cast.ToString(v)
		case "address":
			next.Address = cast.ToString(v)
		case "is_active":
			next.IsActive = cast.ToBool(v)
		}
	}
	if msg := validateAgency(next); msg != nil {
		c.JSON(http.StatusBadRequest, msg)
		return
	}
	*a = next
	c.JSON(http.StatusOK, a)
}

func (h *Handlers) handleDeleteAgency(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.agencyByID(c)
	if !ok {
		return
	}
	delete(h.agencies, a.ID)
	c.JSON(http.StatusOK, models.Message{Message: fmt.Sprintf("Agency '%s' deleted.", a.Name)})
}

// --- alerts ---

func (h *Handlers) handleAdminAlerts(c *gin.Context) {
	status, typ, priority := c.Query("status"), c.Query("type"), c.Query("priority")

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.Alert, 0)
	for _, rec := range h.alerts {
		a := rec.alert
		if status != "" && string(a.Status) != status {
			continue
		}
		if typ != "" && string(a.AlertType) != typ {
			continue
		}
		if priority != "" && string(a.Priority) != priority {
			continue
		}
		out = append(out, *a.Clone())
	}
	slices.SortFunc(out, func(a, b models.Alert) int { return b.CreatedAt.Compare(a.CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleAdminAlert(c *gin.Context) {
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
	c.JSON(http.StatusOK, rec.alert.Clone())
}

func (h *Handlers) handleAssign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgencyID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agency_id is required."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.alerts[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found."})
		return
	}
	ag, ok := h.agencies[req.AgencyID]
	if !ok || !ag.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agency not found or inactive."})
		return
	}
	for _, a := range rec.alert.Assignments {
		if a.Agency.ID == ag.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This agency is already assigned to this alert."})
			return
		}
	}

	h.assign(rec, ag)
	if rec.alert.Status == models.StatusPending {
		rec.alert.Status = models.StatusDispatched
	}
	rec.alert.UpdatedAt = h.now()

	c.JSON(http.StatusCreated, models.Message{
		Message: fmt.Sprintf("Alert #%d assigned to %s and dispatched.", id, ag.Name),
	})
}

// --- users ---

func (h *Handlers) userView(acc *account) models.AdminUser {
	return models.AdminUser{
		ID:          acc.profile.ID,
		Email:       acc.profile.Email,
		FirstName:   acc.profile.FirstName,
		LastName:    acc.profile.LastName,
		PhoneNumber: acc.profile.PhoneNumber,
		Role:        acc.profile.Role,
		IsActive:    acc.isActive,
		DateJoined:  acc.dateJoined,
	}
}

func (h *Handlers) handleUsers(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.AdminUser, 0)
	for _, acc := range h.accounts {
		if acc.profile.Role == models.RoleCivilian {
			out = append(out, h.userView(acc))
		}
	}
	slices.SortFunc(out, func(a, b models.AdminUser) int { return int(a.ID - b.ID) })
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handlePatchUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	acc, ok := h.accounts[id]
	if !ok || acc.profile.Role != models.RoleCivilian {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
		return
	}
	if v, ok := body["is_active"]; ok {
		acc.isActive = cast.ToBool(v)
	}
	c.JSON(http.StatusOK, h.userView(acc))
}

// --- notifications, reports, settings ---

func (h *Handlers) handleNotifications(c *gin.Context) {
	channel := strings.ToUpper(c.Query("channel"))
	status := strings.ToUpper(c.Query("status"))
	assignment, _ := strconv.ParseInt(c.Query("assignment"), 10, 64)

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.Notification, 0)
	for i := len(h.notifications) - 1; i >= 0; i-- {
		n := h.notifications[i]
		if channel != "" && n.Channel != channel {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		if assignment > 0 && n.AssignmentID != assignment {
			continue
		}
		out = append(out, n)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleReports(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	r := models.Reports{
		AlertVolume:             map[string]int{"last_24h": 0, "last_7d": 0, "last_30d": 0, "all_time": len(h.alerts)},
		AlertTypes:              map[string]int{},
		AlertStatuses:           map[string]int{},
		NotificationDelivery:    map[string]models.ChannelStats{},
		AvgResponseByAgencyType: map[string]float64{},
		GeneratedAt:             now,
	}
	for _, t := range models.AlertTypes {
		r.AlertTypes[string(t)] = 0
	}
	for _, s := range append(slices.Clone(models.StatusOrder), models.StatusCancelled) {
		r.AlertStatuses[string(s)] = 0
	}

	sums := map[string][]float64{}
	for _, rec := range h.alerts {
		age := now.Sub(rec.alert.CreatedAt)
		for key, days := range map[string]int{"last_24h": 1, "last_7d": 7, "last_30d": 30} {
			if age.Hours() <= float64(days*24) {
				r.AlertVolume[key]++
			}
		}
		r.AlertTypes[string(rec.alert.AlertType)]++
		r.AlertStatuses[string(rec.alert.Status)]++
		for _, a := range rec.alert.Assignments {
			if a.ResponseTime != nil {
				t := string(a.Agency.Type)
				sums[t] = append(sums[t], a.ResponseTime.Sub(a.AssignedAt).Seconds())
			}
		}
	}
	for t, v := range sums {
		var total float64
		for _, s := range v {
			total += s
		}
		r.AvgResponseByAgencyType[t] = math.Round(total / float64(len(v)))
	}

	for _, ch := range []string{"PUSH", "SMS", "EMAIL"} {
		var st models.ChannelStats
		for _, n := range h.notifications {
			if n.Channel != ch {
				continue
			}
			st.Total++
			if n.Status == "SENT" {
				st.Sent++
			}
		}
		st.Failed = st.Total - st.Sent
		if st.Total > 0 {
			rate := math.Round(float64(st.Sent)/float64(st.Total)*1000) / 10
			st.SuccessRate = &rate
		}
		r.NotificationDelivery[ch] = st
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) handleSettings(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.SystemSetting, 0, len(h.settings))
	for _, s := range h.settings {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b models.SystemSetting) int { return strings.Compare(a.Key, b.Key) })
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleUpdateSettings(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a JSON object of {key: new_value} pairs."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res := models.SettingsUpdate{Updated: []string{}}
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s, ok := h.settings[k]
		if !ok {
			if res.Errors == nil {
				res.Errors = map[string]string{}
			}
			res.Errors[k] = "Unknown setting key."
			continue
		}
		s.Value = cast.ToString(body[k])
		s.UpdatedAt = h.now()
		h.settings[k] = s
		res.Updated = append(res.Updated, k)
	}

	status := http.StatusOK
	if len(res.Updated) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, res)
}
