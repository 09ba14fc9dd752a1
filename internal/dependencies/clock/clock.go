package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct {
	clockwork.Clock
}

// New creates a new RealClock backed by clockwork's wall clock, which also
// serves the tickers used by background workers
func New() *RealClock {
	return &RealClock{Clock: clockwork.NewRealClock()}
}

// Now returns the current time in UTC
func (c *RealClock) Now() time.Time {
	return c.Clock.Now().UTC()
}
