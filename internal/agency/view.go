package agency

import (
	"fmt"
	"time"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/i18n"
)

// smsDelay is how long after dispatch the SMS entry is shown in the activity
// log.
const smsDelay = 2 * time.Second

type Entry struct {
	Assignment  models.Assignment `json:"assignment"`
	Elapsed     string            `json:"elapsed"`
	Badge       string            `json:"badge"`
	AgencyLabel string            `json:"agency_label"`
	Selected    bool              `json:"selected"`
}

type Activity struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

type Detail struct {
	Assignment     models.Assignment          `json:"assignment"`
	AckFormVisible bool                       `json:"ack_form_visible"`
	Ack            *models.Acknowledgment     `json:"ack,omitempty"`
	Location       *models.AssignmentLocation `json:"location,omitempty"`
	Activity       []Activity                 `json:"activity"`
}

type View struct {
	Entries       []Entry `json:"entries"`
	Selected      *Detail `json:"selected,omitempty"`
	ListError     string  `json:"list_error,omitempty"`
	StatusError   string  `json:"status_error,omitempty"`
	StatusMessage string  `json:"status_message,omitempty"`
}

// View renders the queue at now.
func (c *Console) View(now time.Time) View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := View{
		Entries:       make([]Entry, 0, len(c.assignments)),
		ListError:     c.listError,
		StatusError:   c.statusError,
		StatusMessage: c.statusMessage,
	}
	for _, a := range c.assignments {
		v.Entries = append(v.Entries, Entry{
			Assignment:  a,
			Elapsed:     Elapsed(now.Sub(a.AssignedAt)),
			Badge:       models.PriorityBadge(a.Priority),
			AgencyLabel: AgencyLabel(a.Agency.Type),
			Selected:    a.ID == c.selectedID,
		})
		if a.ID != c.selectedID {
			continue
		}
		d := &Detail{
			Assignment:     a,
			AckFormVisible: a.Acknowledgment == nil,
			Ack:            a.Acknowledgment,
			Location:       c.location,
			Activity:       activity(a),
		}
		v.Selected = d
	}
	return v
}

// Elapsed formats d as mm:ss. Minutes are not capped at 59.
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d", m, s)
}

// AgencyLabel is the console label of an agency type, e.g. FIRE → "FIRE/RESCUE".
func AgencyLabel(t models.AgencyType) string {
	key := "agency." + string(t)
	if l := i18n.M(key); l != key {
		return l
	}
	return string(t)
}

func activity(a models.Assignment) []Activity {
	out := []Activity{
		{At: a.AssignedAt, Text: i18n.M("activity.dispatched")},
		{At: a.AssignedAt.Add(smsDelay), Text: i18n.M("activity.sms_sent")},
	}
	if ack := a.Acknowledgment; ack != nil {
		text := i18n.M("activity.acknowledged_no_eta", map[string]interface{}{"By": ack.AcknowledgedBy})
		if ack.EstimatedArrival != nil {
			text = i18n.M("activity.acknowledged", map[string]interface{}{"By": ack.AcknowledgedBy, "ETA": *ack.EstimatedArrival})
		}
		out = append(out, Activity{At: ack.Timestamp, Text: text})
	}
	return out
}
