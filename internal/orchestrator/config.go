package orchestrator

import (
	"time"

	"LiveGuard/pkg/config"
)

type Config struct {
	PollInterval         time.Duration
	CancelWindow         time.Duration
	TickInterval         time.Duration
	LocationMinInterval  time.Duration
	LocationMinDistance  float64
	SuccessFeedbackDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:         5 * time.Second,
		CancelWindow:         60 * time.Second,
		TickInterval:         time.Second,
		LocationMinInterval:  10 * time.Second,
		LocationMinDistance:  15,
		SuccessFeedbackDelay: 1500 * time.Millisecond,
	}
}

// ConfigFrom maps the poll section of the client config. Zero values fall
// back to the defaults.
func ConfigFrom(p config.PollConfig) Config {
	c := DefaultConfig()
	if p.AlertStatusInterval > 0 {
		c.PollInterval = p.AlertStatusInterval
	}
	if p.CancelWindow > 0 {
		c.CancelWindow = p.CancelWindow
	}
	if p.TickInterval > 0 {
		c.TickInterval = p.TickInterval
	}
	if p.LocationMinInterval > 0 {
		c.LocationMinInterval = p.LocationMinInterval
	}
	if p.LocationMinDistance > 0 {
		c.LocationMinDistance = p.LocationMinDistance
	}
	if p.SuccessFeedbackDelay > 0 {
		c.SuccessFeedbackDelay = p.SuccessFeedbackDelay
	}
	return c
}
