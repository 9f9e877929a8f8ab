package models

import "time"

// Dashboard is GET /api/admin/dashboard/.
type Dashboard struct {
	TotalAlerts              int            `json:"total_alerts"`
	TotalAgencies            int            `json:"total_agencies"`
	TotalUsers               int            `json:"total_users"`
	AlertsByStatus           map[string]int `json:"alerts_by_status"`
	AlertsByType             map[string]int `json:"alerts_by_type"`
	AlertsByPriority         map[string]int `json:"alerts_by_priority"`
	AvgAgencyResponseSeconds *float64       `json:"avg_agency_response_seconds"`
}

// AgencyRecord is the admin view of an agency.
type AgencyRecord struct {
	ID           int64      `json:"agency_id"`
	Name         string     `json:"agency_name"`
	Type         AgencyType `json:"agency_type"`
	ContactPhone string     `json:"contact_phone,omitempty"`
	ContactEmail string     `json:"contact_email,omitempty"`
	Address      string     `json:"address,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	IsActive     bool       `json:"is_active"`
}

type AdminUser struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        Role      `json:"role,omitempty"`
	IsActive    bool      `json:"is_active"`
	DateJoined  time.Time `json:"date_joined"`
}

type Notification struct {
	ID           int64     `json:"notification_id"`
	AssignmentID int64     `json:"assignment"`
	Channel      string    `json:"channel"`
	Status       string    `json:"status"`
	Recipient    string    `json:"recipient,omitempty"`
	Message      string    `json:"message,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

type AdminAlertFilter struct {
	Status   AlertStatus
	Type     AlertType
	Priority Priority
}

type NotificationFilter struct {
	Channel    string
	Status     string
	Assignment int64
}

type AssignRequest struct {
	AgencyID int64 `json:"agency_id"`
}

// Reports is GET /api/admin/reports/.
type Reports struct {
	AlertVolume             map[string]int          `json:"alert_volume"`
	AlertTypes              map[string]int          `json:"alert_types"`
	AlertStatuses           map[string]int          `json:"alert_statuses"`
	NotificationDelivery    map[string]ChannelStats `json:"notification_delivery"`
	AvgResponseByAgencyType map[string]float64      `json:"avg_response_seconds_by_agency_type"`
	GeneratedAt             time.Time               `json:"generated_at"`
}

type ChannelStats struct {
	Total       int      `json:"total"`
	Sent        int      `json:"sent"`
	Failed      int      `json:"failed"`
	SuccessRate *float64 `json:"success_rate"`
}

type SystemSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingsUpdate is the PATCH /api/admin/settings/ response. Unknown keys are
// reported per key in Errors.
type SettingsUpdate struct {
	Updated []string          `json:"updated"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Message is the {"message": ...} body several endpoints reply with.
type Message struct {
	Message string `json:"message"`
}
