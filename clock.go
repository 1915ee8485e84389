package proseql

import (
	"sync"
	"time"
)

// Clock produces the timestamps stamped onto entities at commit time.
type Clock interface {
	Now() time.Time
}

// monotonicClock guarantees a strictly increasing sequence of timestamps
// even under rapid successive calls, so that invariant 2 ("updatedAt is
// produced by a monotone clock reading taken at commit time") holds even
// when the wall clock's resolution is coarser than the commit rate.
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

// NewMonotonicClock returns the default Clock used by a Database when none
// is supplied in Config.
func NewMonotonicClock() Clock { return &monotonicClock{} }

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Nanosecond)
	}
	c.last = now
	return now
}

// nowISO formats a clock reading as ISO-8601 UTC with nanosecond precision.
func nowISO(c Clock) string {
	return c.Now().UTC().Format(time.RFC3339Nano)
}
