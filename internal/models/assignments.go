package models

import "time"

type AgencyType string

const (
	AgencyFire          AgencyType = "FIRE"
	AgencyPolice        AgencyType = "POLICE"
	AgencyMedical       AgencyType = "MEDICAL"
	AgencyMilitary      AgencyType = "MILITARY"
	AgencySecurityForce AgencyType = "SECURITY_FORCE"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "PENDING"
	NotificationSent      NotificationStatus = "SENT"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationFailed    NotificationStatus = "FAILED"
)

type Agency struct {
	ID           int64      `json:"agency_id,omitempty"`
	Name         string     `json:"agency_name"`
	Type         AgencyType `json:"agency_type"`
	ContactPhone string     `json:"contact_phone,omitempty"`
}

// Assignment is one agency's response record for an alert.
type Assignment struct {
	ID                 int64              `json:"assignment_id"`
	Agency             Agency             `json:"agency"`
	AssignedAt         time.Time          `json:"assigned_at"`
	NotificationStatus NotificationStatus `json:"notification_status,omitempty"`
	ResponseTime       *time.Time         `json:"response_time,omitempty"`
	Priority           int                `json:"assignment_priority,omitempty"`
	Acknowledgment     *Acknowledgment    `json:"acknowledgment,omitempty"`
	// present on the agency list only
	Alert *AlertSummary `json:"alert,omitempty"`
}

func (a *Assignment) Acknowledged() bool { return a != nil && a.Acknowledgment != nil }

func (a *Assignment) Clone() *Assignment {
	c := *a
	if a.ResponseTime != nil {
		rt := *a.ResponseTime
		c.ResponseTime = &rt
	}
	if a.Acknowledgment != nil {
		ack := *a.Acknowledgment
		if a.Acknowledgment.EstimatedArrival != nil {
			eta := *a.Acknowledgment.EstimatedArrival
			ack.EstimatedArrival = &eta
		}
		c.Acknowledgment = &ack
	}
	if a.Alert != nil {
		s := *a.Alert
		c.Alert = &s
	}
	return &c
}

// Acknowledgment is created at most once per assignment and never changes.
type Acknowledgment struct {
	ID               int64     `json:"ack_id,omitempty"`
	AcknowledgedBy   string    `json:"acknowledged_by"`
	Timestamp        time.Time `json:"ack_timestamp"`
	EstimatedArrival *int      `json:"estimated_arrival,omitempty"`
	ResponseMessage  string    `json:"response_message,omitempty"`
	ResponderContact string    `json:"responder_contact,omitempty"`
}

type AlertSummary struct {
	ID          int64       `json:"alert_id"`
	AlertType   AlertType   `json:"alert_type"`
	Priority    Priority    `json:"priority_level"`
	Status      AlertStatus `json:"status"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AssignmentLocation is returned by GET /api/agency/alerts/{id}/location/.
type AssignmentLocation struct {
	Latitude   Coordinate `json:"latitude"`
	Longitude  Coordinate `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Address    string     `json:"address,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	MapsURL    string     `json:"maps_url,omitempty"`
}

// AcknowledgeRequest omits optional fields that were left blank.
type AcknowledgeRequest struct {
	AcknowledgedBy   string `json:"acknowledged_by"`
	EstimatedArrival *int   `json:"estimated_arrival,omitempty"`
	ResponseMessage  string `json:"response_message,omitempty"`
	ResponderContact string `json:"responder_contact,omitempty"`
}

type StatusUpdateRequest struct {
	Status AlertStatus `json:"status"`
}

type StatusUpdateResponse struct {
	Message string `json:"message"`
	AlertID int64  `json:"alert_id"`
}

// PriorityBadge maps assignment_priority to its badge text.
func PriorityBadge(p int) string {
	switch p {
	case 1:
		return "CRITICAL"
	case 2:
		return "HIGH"
	case 3:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
