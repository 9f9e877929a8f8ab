package models

import "time"

type AlertType string

const (
	AlertTypeTerrorism     AlertType = "TERRORISM"
	AlertTypeBanditry      AlertType = "BANDITRY"
	AlertTypeKidnapping    AlertType = "KIDNAPPING"
	AlertTypeArmedRobbery  AlertType = "ARMED_ROBBERY"
	AlertTypeRobbery       AlertType = "ROBBERY"
	AlertTypeFireIncidence AlertType = "FIRE_INCIDENCE"
	AlertTypeAccident      AlertType = "ACCIDENT"
	AlertTypeOther         AlertType = "OTHER"
)

var AlertTypes = []AlertType{
	AlertTypeTerrorism, AlertTypeBanditry, AlertTypeKidnapping, AlertTypeArmedRobbery,
	AlertTypeRobbery, AlertTypeFireIncidence, AlertTypeAccident, AlertTypeOther,
}

func (t AlertType) Valid() bool {
	for _, v := range AlertTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

type AlertStatus string

const (
	StatusPending      AlertStatus = "PENDING"
	StatusDispatched   AlertStatus = "DISPATCHED"
	StatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	StatusResponding   AlertStatus = "RESPONDING"
	StatusResolved     AlertStatus = "RESOLVED"
	StatusCancelled    AlertStatus = "CANCELLED"
)

// StatusOrder is the forward path shown on the status timeline. CANCELLED
// branches off PENDING/DISPATCHED and is not part of it.
var StatusOrder = []AlertStatus{
	StatusPending, StatusDispatched, StatusAcknowledged, StatusResponding, StatusResolved,
}

// IsTerminal reports whether no further transitions or location updates are
// accepted.
func (s AlertStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Cancellable reports whether the status still allows a civilian cancel.
func (s AlertStatus) Cancellable() bool {
	return s == StatusPending || s == StatusDispatched
}

// Rank is the position on StatusOrder, or -1.
func (s AlertStatus) Rank() int {
	for i, v := range StatusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Alert SOS 警报
type Alert struct {
	ID          int64          `json:"alert_id"`
	AlertType   AlertType      `json:"alert_type"`
	Priority    Priority       `json:"priority_level"`
	Description string         `json:"description,omitempty"`
	Status      AlertStatus    `json:"status"`
	Rating      *int           `json:"rating,omitempty"`
	Location    *AlertLocation `json:"location,omitempty"`
	Assignments []Assignment   `json:"assignments,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type AlertLocation struct {
	ID         int64      `json:"location_id,omitempty"`
	Latitude   Coordinate `json:"latitude"`
	Longitude  Coordinate `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Address    string     `json:"address,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

// FirstAssignment returns the assignment that drives ETA and responder
// contact, or nil.
func (a *Alert) FirstAssignment() *Assignment {
	if a == nil || len(a.Assignments) == 0 {
		return nil
	}
	return &a.Assignments[0]
}

// Clone returns a deep copy.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	if a.Rating != nil {
		r := *a.Rating
		c.Rating = &r
	}
	if a.Location != nil {
		l := *a.Location
		if a.Location.Accuracy != nil {
			acc := *a.Location.Accuracy
			l.Accuracy = &acc
		}
		c.Location = &l
	}
	if a.Assignments != nil {
		c.Assignments = make([]Assignment, len(a.Assignments))
		for i := range a.Assignments {
			c.Assignments[i] = *a.Assignments[i].Clone()
		}
	}
	return &c
}

// CreateAlertRequest is the POST /api/alerts/create/ body.
type CreateAlertRequest struct {
	AlertType   AlertType `json:"alert_type"`
	Priority    Priority  `json:"priority_level"`
	Description string    `json:"description,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Accuracy    *float64  `json:"accuracy,omitempty"`
}

// LocationUpdate is the PATCH /api/alerts/{id}/location/ body.
type LocationUpdate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// CancelResponse is all the server returns for a cancel.
type CancelResponse struct {
	Message string `json:"message"`
	AlertID int64  `json:"alert_id"`
}

type RateRequest struct {
	Rating int `json:"rating"`
}
