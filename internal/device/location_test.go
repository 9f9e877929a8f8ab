package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	lagos := Fix{Latitude: 6.5244, Longitude: 3.3792}
	assert.InDelta(t, 0, Distance(lagos, lagos), 1e-6)

	// 0.0001 degree of latitude is about 11.1 m
	north := Fix{Latitude: 6.5245, Longitude: 3.3792}
	assert.InDelta(t, 11.1, Distance(lagos, north), 0.2)

	abuja := Fix{Latitude: 9.0765, Longitude: 7.3986}
	assert.InDelta(t, 526_000, Distance(lagos, abuja), 5_000)
}

func TestRound7(t *testing.T) {
	assert.Equal(t, 6.5243793, Round7(6.52437934999))
	assert.Equal(t, -3.1234568, Round7(-3.12345678))
}

func TestAddressString(t *testing.T) {
	a := Address{Street: "12 Marina", City: "Lagos", Country: "Nigeria"}
	assert.Equal(t, "12 Marina, Lagos, Nigeria", a.String())
	assert.Equal(t, "Address unavailable", Address{}.String())
}

func TestStaticWatch(t *testing.T) {
	s := NewStatic(1, 2)
	var got []Fix
	stop, err := s.Watch(context.Background(), WatchOptions{}, func(f Fix) { got = append(got, f) })
	require.NoError(t, err)
	assert.Equal(t, 1, s.Watchers())

	s.Move(1.5, 2.5)
	stop()
	stop()
	s.Move(3, 4)

	require.Len(t, got, 1)
	assert.Equal(t, 1.5, got[0].Latitude)
	assert.Zero(t, s.Watchers())
}
