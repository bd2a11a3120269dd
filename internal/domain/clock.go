package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps run and scenario start/finish times. Tests and the validate
// command freeze it via SetClock for reproducible reports.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for run timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time of the package clock in UTC.
func Now() time.Time { return clock.Now().UTC() }

// Since returns the time elapsed on the package clock since t.
func Since(t time.Time) time.Duration { return clock.Since(t) }

// NewTicker returns a ticker on the package clock.
func NewTicker(d time.Duration) clockwork.Ticker { return clock.NewTicker(d) }
