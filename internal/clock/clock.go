package clock

import (
	"context"
	"sync"
	"time"
)

// Clock gives the poller its notion of time. Now is used for elapsed-time
// comparisons only; Wall is the (possibly NTP corrected) time of day.
type Clock interface {
	Now() time.Time
	Wall() time.Time
	SetWall(t time.Time)
	Synced() bool
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct {
	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

// NewSystem returns a clock backed by the host clock. SetWall does not touch
// the OS clock, it records an offset applied by Wall.
func NewSystem() Clock {
	return &systemClock{}
}

func (c *systemClock) Now() time.Time { return time.Now() }

func (c *systemClock) Wall() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset).Round(0)
}

func (c *systemClock) SetWall(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = t.Sub(time.Now())
	c.synced = true
}

func (c *systemClock) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

func (c *systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
