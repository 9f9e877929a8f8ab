package alertstore

import "LiveGuard/pkg/sse"

type EventKind string

const (
	EventSubmitStarted  EventKind = "submit_started"
	EventSubmitFailed   EventKind = "submit_failed"
	EventAlertCreated   EventKind = "alert_created"
	EventStatusStarted  EventKind = "status_started"
	EventStatusFailed   EventKind = "status_failed"
	EventStatusFetched  EventKind = "status_fetched"
	EventHistoryStarted EventKind = "history_started"
	EventHistoryFailed  EventKind = "history_failed"
	EventHistoryFetched EventKind = "history_fetched"
	EventCancelStarted  EventKind = "cancel_started"
	EventCancelFailed   EventKind = "cancel_failed"
	EventCancelled      EventKind = "cancelled"
	EventRated          EventKind = "rated"
	EventErrorCleared   EventKind = "error_cleared"
	EventReset          EventKind = "reset"
)

// Event is a store change and the state right after it.
type Event struct {
	Kind     EventKind
	Snapshot State
}

// DecodeEvent turns a hub event from Subscribe into an Event.
func DecodeEvent(ev sse.Event) (Event, error) {
	var st State
	if err := ev.Decode(&st); err != nil {
		return Event{}, err
	}
	return Event{Kind: EventKind(ev.Name), Snapshot: st}, nil
}
