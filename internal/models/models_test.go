package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusResolved.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusResponding.IsTerminal())

	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusDispatched.Cancellable())
	assert.False(t, StatusAcknowledged.Cancellable())

	assert.Equal(t, 0, StatusPending.Rank())
	assert.Equal(t, 4, StatusResolved.Rank())
	assert.Equal(t, -1, StatusCancelled.Rank())

	assert.True(t, AlertTypeFireIncidence.Valid())
	assert.False(t, AlertType("FLOOD").Valid())
	assert.False(t, Priority("").Valid())
}

func TestListDecoding(t *testing.T) {
	cases := map[string]int{
		`[{"assignment_id":1},{"assignment_id":2}]`:   2,
		`{"count":1,"results":[{"assignment_id":7}]}`: 1,
		`{"results":null}`:                            0,
		`{"detail":"nothing"}`:                        0,
		`null`:                                        0,
	}
	for body, n := range cases {
		var l List[Assignment]
		require.NoError(t, json.Unmarshal([]byte(body), &l), body)
		assert.Len(t, l, n, body)
		assert.NotNil(t, l, body)
	}
}

func TestAlertDecodeAndClone(t *testing.T) {
	body := `{
		"alert_id": 42, "alert_type": "FIRE_INCIDENCE", "priority_level": "CRITICAL",
		"status": "ACKNOWLEDGED", "rating": null, "created_at": "2026-02-20T15:45:00.123456Z",
		"location": {"latitude": 6.5244, "longitude": 3.3792, "accuracy": 10, "captured_at": "2026-02-20T15:45:00Z"},
		"assignments": [{
			"assignment_id": 1, "assigned_at": "2026-02-20T15:45:02Z", "notification_status": "SENT",
			"assignment_priority": 1,
			"agency": {"agency_name": "Lagos Fire Service", "agency_type": "FIRE", "contact_phone": "+2348000000000"},
			"acknowledgment": {"acknowledged_by": "Officer Ade", "ack_timestamp": "2026-02-20T15:46:00Z", "estimated_arrival": 12}
		}]
	}`
	var a Alert
	require.NoError(t, json.Unmarshal([]byte(body), &a))
	assert.Equal(t, int64(42), a.ID)
	assert.Nil(t, a.Rating)
	require.NotNil(t, a.FirstAssignment())
	require.True(t, a.FirstAssignment().Acknowledged())
	assert.Equal(t, 12, *a.FirstAssignment().Acknowledgment.EstimatedArrival)

	c := a.Clone()
	*c.Assignments[0].Acknowledgment.EstimatedArrival = 99
	*c.Location.Accuracy = 1
	c.Status = StatusResolved
	assert.Equal(t, 12, *a.Assignments[0].Acknowledgment.EstimatedArrival)
	assert.Equal(t, 10.0, *a.Location.Accuracy)
	assert.Equal(t, StatusAcknowledged, a.Status)

	var nilAlert *Alert
	assert.Nil(t, nilAlert.Clone())
	assert.Nil(t, nilAlert.FirstAssignment())
}

func TestPriorityBadge(t *testing.T) {
	assert.Equal(t, "CRITICAL", PriorityBadge(1))
	assert.Equal(t, "HIGH", PriorityBadge(2))
	assert.Equal(t, "MEDIUM", PriorityBadge(3))
	assert.Equal(t, "LOW", PriorityBadge(4))
	assert.Equal(t, "LOW", PriorityBadge(0))
}

func TestCoordinateAcceptsDecimalStrings(t *testing.T) {
	var loc AssignmentLocation
	require.NoError(t, json.Unmarshal([]byte(`{"latitude":"6.5244000","longitude":3.3792,"captured_at":"2026-02-20T15:45:00Z"}`), &loc))
	assert.Equal(t, 6.5244, loc.Latitude.Float())
	assert.Equal(t, 3.3792, loc.Longitude.Float())

	b, err := json.Marshal(loc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"latitude":6.5244`)

	assert.Error(t, json.Unmarshal([]byte(`{"latitude":"north"}`), &loc))
}
