package orchestrator

import (
	"time"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/i18n"
)

// Step is one entry of the status timeline.
type Step struct {
	Status  models.AlertStatus
	Label   string
	Done    bool
	Current bool
}

// View is everything the status screen renders at one instant.
type View struct {
	AlertID     int64
	Status      models.AlertStatus
	StatusLabel string

	CancelRemaining time.Duration
	CanCancel       bool

	// nil until a responder acknowledged with an ETA
	ETARemaining   *time.Duration
	AgencyName     string
	ResponderPhone string

	Timeline         []Step
	PollError        string
	ShowRatingPrompt bool
}

func buildView(a *models.Alert, now time.Time, window time.Duration) View {
	if a == nil {
		return View{}
	}
	v := View{
		AlertID:     a.ID,
		Status:      a.Status,
		StatusLabel: StatusLabel(a.Status),
		Timeline:    timeline(a.Status),
	}

	v.CancelRemaining = max(0, window-now.Sub(a.CreatedAt))
	v.CanCancel = a.Status.Cancellable() && v.CancelRemaining > 0

	if first := a.FirstAssignment(); first != nil {
		v.AgencyName = first.Agency.Name
		v.ResponderPhone = first.Agency.ContactPhone
		if ack := first.Acknowledgment; ack != nil {
			if ack.ResponderContact != "" {
				v.ResponderPhone = ack.ResponderContact
			}
			if ack.EstimatedArrival != nil {
				at := now
				// 已解决的警报倒计时停在解决时刻
				if a.Status == models.StatusResolved && !a.UpdatedAt.IsZero() {
					at = a.UpdatedAt
				}
				eta := max(0, time.Duration(*ack.EstimatedArrival)*time.Minute-at.Sub(a.CreatedAt))
				v.ETARemaining = &eta
			}
		}
	}
	return v
}

func timeline(status models.AlertStatus) []Step {
	rank := status.Rank()
	steps := make([]Step, 0, len(models.StatusOrder)+1)
	for i, st := range models.StatusOrder {
		steps = append(steps, Step{
			Status:  st,
			Label:   StatusLabel(st),
			Done:    rank >= 0 && i < rank,
			Current: i == rank,
		})
	}
	if status == models.StatusCancelled {
		steps = append(steps, Step{Status: status, Label: StatusLabel(status), Current: true})
	}
	return steps
}

// StatusLabel is the display label of a status, e.g. RESPONDING → "En Route".
func StatusLabel(s models.AlertStatus) string {
	key := "status." + string(s)
	if l := i18n.M(key); l != key {
		return l
	}
	return string(s)
}
