package models

import "time"

// PendingAlert is an unsent create payload kept on the device for retry.
// Coordinates are nil when the location fix itself failed.
type PendingAlert struct {
	AlertType   AlertType `json:"alert_type"`
	Priority    Priority  `json:"priority_level"`
	Description string    `json:"description,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Accuracy    *float64  `json:"accuracy,omitempty"`
	Address     string    `json:"address,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

func (p *PendingAlert) HasLocation() bool {
	return p != nil && p.Latitude != nil && p.Longitude != nil
}

type EmergencyContact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// KVEntry is one row of the device key/value table.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string { return "device_kv" }
