package handlers

import (
	"LiveGuard/internal/models"
)

// Seeded accounts. Every password is "password".
const (
	CivilianEmail = "civilian@liveguard.test"
	AgencyEmail   = "fire@liveguard.test"
	AdminEmail    = "admin@liveguard.test"
	SeedPassword  = "password"

	CivilianID int64 = 1
	AgencyUser int64 = 2
	AdminID    int64 = 3

	// the agency AgencyEmail belongs to
	FireAgencyID int64 = 1
)

// dispatchTargets maps an alert type to the agency types notified for it.
var dispatchTargets = map[models.AlertType][]models.AgencyType{
	models.AlertTypeTerrorism:     {models.AgencyMilitary, models.AgencyPolice, models.AgencySecurityForce},
	models.AlertTypeBanditry:      {models.AgencyPolice, models.AgencySecurityForce},
	models.AlertTypeKidnapping:    {models.AgencyPolice, models.AgencySecurityForce},
	models.AlertTypeArmedRobbery:  {models.AgencyPolice},
	models.AlertTypeRobbery:       {models.AgencyPolice},
	models.AlertTypeFireIncidence: {models.AgencyFire},
	models.AlertTypeAccident:      {models.AgencyMedical},
	models.AlertTypeOther:         {models.AgencyPolice},
}

var defaultSettings = []models.SystemSetting{
	{Key: "alert_creation_rate_limit", Value: "5", Description: "Max alerts a civilian can create per hour"},
	{Key: "user_rate_limit", Value: "100", Description: "Max API requests per user per hour"},
	{Key: "max_notification_retries", Value: "2", Description: "Maximum retry attempts per notification channel"},
	{Key: "alert_polling_interval_s", Value: "5", Description: "Frontend polling interval in seconds (informational)"},
	{Key: "location_update_interval_m", Value: "15", Description: "Min metres moved before location update is sent (informational)"},
}

func (h *Handlers) seed() {
	now := h.now()

	agencies := []models.AgencyRecord{
		{Name: "Lagos State Fire Service", Type: models.AgencyFire, ContactPhone: "+2348012345601", ContactEmail: "fire@lagos.gov.ng"},
		{Name: "Lagos State Police Command", Type: models.AgencyPolice, ContactPhone: "+2348012345602", ContactEmail: "police@lagos.gov.ng"},
		{Name: "LASAMBUS", Type: models.AgencyMedical, ContactPhone: "+2348012345603", ContactEmail: "ems@lagos.gov.ng"},
		{Name: "81 Division", Type: models.AgencyMilitary, ContactPhone: "+2348012345604"},
		{Name: "NSCDC Lagos", Type: models.AgencySecurityForce, ContactPhone: "+2348012345605"},
	}
	for i := range agencies {
		h.nextAgencyID++
		a := agencies[i]
		a.ID = h.nextAgencyID
		a.IsActive = true
		h.agencies[a.ID] = &a
	}

	h.accounts[CivilianID] = &account{
		profile:    models.Profile{ID: CivilianID, Email: CivilianEmail, FirstName: "Ada", LastName: "Obi", PhoneNumber: "+2348030000001", Role: models.RoleCivilian},
		password:   SeedPassword,
		isActive:   true,
		dateJoined: now,
	}
	h.accounts[AgencyUser] = &account{
		profile:    models.Profile{ID: AgencyUser, Email: AgencyEmail, FirstName: "Tunde", LastName: "Bello", Role: models.RoleAgency},
		password:   SeedPassword,
		agencyID:   FireAgencyID,
		isActive:   true,
		dateJoined: now,
	}
	h.accounts[AdminID] = &account{
		profile:    models.Profile{ID: AdminID, Email: AdminEmail, FirstName: "Admin", Role: models.RoleAdmin},
		password:   SeedPassword,
		isActive:   true,
		dateJoined: now,
	}

	for _, s := range defaultSettings {
		s.UpdatedAt = now
		h.settings[s.Key] = s
	}
}

func assignmentPriority(p models.Priority) int {
	switch p {
	case models.PriorityCritical:
		return 1
	case models.PriorityHigh:
		return 2
	case models.PriorityMedium:
		return 3
	default:
		return 4
	}
}
