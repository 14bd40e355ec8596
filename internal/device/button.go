package device

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Button is an active-low push button with a pull-up. Presses are latched by
// Watch when the pin supports edge interrupts and are additionally detected by
// sampling in Pressed.
type Button struct {
	pin   gpio.PinIn
	edges bool
	last  gpio.Level
	latch atomic.Bool
}

// OpenButton looks the pin up in the periph registry.
func OpenButton(name string) (*Button, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return NewButton(p)
}

func NewButton(pin gpio.PinIn) (*Button, error) {
	b := &Button{pin: pin}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err == nil {
		b.edges = true
	} else {
		logging.Warn("Button edge detection unavailable, sampling only", "pin", pin.String(), "error", err)
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure %s: %w", pin, err)
		}
	}
	b.last = pin.Read()
	return b, nil
}

// EdgeDriven reports whether Watch has anything to do.
func (b *Button) EdgeDriven() bool { return b.edges }

// Watch latches falling edges until ctx is done.
func (b *Button) Watch(ctx context.Context) error {
	if !b.edges {
		<-ctx.Done()
		return nil
	}
	for ctx.Err() == nil {
		if b.pin.WaitForEdge(time.Second) && b.pin.Read() == gpio.Low {
			b.latch.Store(true)
		}
	}
	return nil
}

// Pressed reports a press since the previous call. Holding the button down
// counts once.
func (b *Button) Pressed() bool {
	lvl := b.pin.Read()
	fell := b.last == gpio.High && lvl == gpio.Low
	b.last = lvl
	return b.latch.Swap(false) || fell
}
