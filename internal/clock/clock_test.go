package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClockSetWall(t *testing.T) {
	c := NewSystem()
	assert.False(t, c.Synced())

	target := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetWall(target)
	assert.True(t, c.Synced())
	assert.WithinDuration(t, target, c.Wall(), time.Second)
}

func TestSystemClockSleepHonorsContext(t *testing.T) {
	c := NewSystem()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), 3*time.Second))
	assert.Equal(t, start.Add(3*time.Second), f.Now())
	assert.Equal(t, 3*time.Second, f.Slept())

	f.SetWall(time.Unix(5000, 0))
	f.Advance(time.Second)
	assert.Equal(t, time.Unix(5001, 0), f.Wall())
}
