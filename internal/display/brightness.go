package display

import (
	"context"
	"time"

	"github.com/fisaks/voldisp/internal/clock"
	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/voldisp"
)

type ContrastSetter interface {
	SetContrast(level uint8) error
}

// Brightness owns the panel contrast. It is driven from the poll loop only.
type Brightness struct {
	panel ContrastSetter
	clock clock.Clock

	dim, bright int
	step        int
	delay       time.Duration

	current int
	target  int
}

func NewBrightness(panel ContrastSetter, clk clock.Clock, cfg config.DisplayConfig) *Brightness {
	return &Brightness{
		panel:   panel,
		clock:   clk,
		dim:     cfg.Dim,
		bright:  cfg.Bright,
		step:    cfg.FadeStep,
		delay:   cfg.FadeStepDelay,
		current: cfg.Bright,
		target:  cfg.Bright,
	}
}

func (b *Brightness) Current() int { return b.current }
func (b *Brightness) Target() int  { return b.target }
func (b *Brightness) Dim() int     { return b.dim }
func (b *Brightness) Bright() int  { return b.bright }

// Dimmed reports whether the last control call left the panel at the dim level.
func (b *Brightness) Dimmed() bool { return b.current == b.dim }

func (b *Brightness) apply(level int) error {
	if err := b.panel.SetContrast(uint8(level)); err != nil {
		return voldisp.NewError(voldisp.RenderFault, "set contrast", err)
	}
	b.current = level
	return nil
}

// Init pushes the bright level to the panel so Current matches what the
// controller shows after power on.
func (b *Brightness) Init() error {
	return b.SetImmediate(b.bright)
}

// SetImmediate jumps straight to level.
func (b *Brightness) SetImmediate(level int) error {
	level = clampLevel(level)
	b.target = level
	return b.apply(level)
}

// FadeTo ramps to level using the configured step and delay.
func (b *Brightness) FadeTo(ctx context.Context, level int) (int, error) {
	return b.Fade(ctx, level, b.step, b.delay)
}

// Fade moves current toward level by step, waiting delay after each step. The
// last step lands exactly on level. It returns the number of steps applied.
func (b *Brightness) Fade(ctx context.Context, level, step int, delay time.Duration) (int, error) {
	level = clampLevel(level)
	b.target = level
	if step <= 0 {
		step = max(abs(level-b.current), 1)
	}
	steps := 0
	for b.current != level {
		next := b.current + step
		if level < b.current {
			next = max(b.current-step, level)
		} else {
			next = min(next, level)
		}
		if err := b.apply(next); err != nil {
			return steps, err
		}
		steps++
		if err := b.clock.Sleep(ctx, delay); err != nil {
			return steps, err
		}
	}
	return steps, nil
}

func clampLevel(v int) int { return min(max(v, 0), 255) }
