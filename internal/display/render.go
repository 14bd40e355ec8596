package display

import (
	"fmt"
	"strconv"

	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/voldisp"
)

const (
	volumeScale   = 6
	volumeSpacing = 6
	timeScale     = 4
	timeSpacing   = 4
	muteIconScale = 2
)

// Renderer composes screens into a framebuffer and pushes them to a panel.
type Renderer struct {
	panel Panel
	fb    *Framebuffer
	tc    config.TimeConfig
}

func NewRenderer(panel Panel, width, height int, tc config.TimeConfig) *Renderer {
	return &Renderer{panel: panel, fb: NewFramebuffer(width, height), tc: tc}
}

// Frame exposes the composed image of the last Render call.
func (r *Renderer) Frame() *Framebuffer { return r.fb }

func (r *Renderer) Render(mode voldisp.DisplayMode) error {
	if err := r.Compose(mode); err != nil {
		return voldisp.NewError(voldisp.RenderFault, "render "+mode.Kind.String(), err)
	}
	if err := r.panel.Show(r.fb.Bytes()); err != nil {
		return voldisp.NewError(voldisp.RenderFault, "render "+mode.Kind.String(), err)
	}
	return nil
}

// Compose draws mode into the framebuffer without touching the panel.
func (r *Renderer) Compose(mode voldisp.DisplayMode) error {
	r.fb.Clear()
	switch mode.Kind {
	case voldisp.ModeSpeaker:
		if mode.Speaker.Muted {
			r.muted(mode.Speaker.Volume)
		} else {
			r.volume(mode.Speaker.Volume)
		}
	case voldisp.ModeTime:
		r.clock(mode.Time.Hour(), mode.Time.Minute())
	case voldisp.ModeStatus:
		r.status(mode.Line1, mode.Line2)
	case voldisp.ModeError:
		r.status(mode.Error.Label())
	default:
		return fmt.Errorf("unknown display mode %d", mode.Kind)
	}
	return nil
}

func (r *Renderer) volume(v int) {
	s := strconv.Itoa(v)
	total := NumberWidth(len(s), volumeScale, volumeSpacing)
	x := (r.fb.Width() - total) / 2
	y := (r.fb.Height() - DigitHeight(volumeScale)) / 2
	r.fb.BigNumber(s, x, y, volumeScale, volumeSpacing)
}

// muted puts the icon top-left and the volume in the bottom-right corner.
func (r *Renderer) muted(v int) {
	r.fb.MuteIcon(2, 2, muteIconScale)
	s := strconv.Itoa(v)
	total := NumberWidth(len(s), volumeScale, volumeSpacing)
	x := r.fb.Width() - total - 2
	y := r.fb.Height() - DigitHeight(volumeScale) - 1
	r.fb.BigNumber(s, x, y, volumeScale, volumeSpacing)
}

func (r *Renderer) clock(hour, minute int) {
	shown := hour
	if !r.tc.TwentyFourHours {
		shown = hour % 12
		if shown == 0 {
			shown = 12
		}
	}
	hh := fmt.Sprintf("%02d", shown)
	mm := fmt.Sprintf("%02d", minute)

	pair := NumberWidth(2, timeScale, timeSpacing)
	total := 4*DigitWidth(timeScale) + 4*timeSpacing
	x := (r.fb.Width() - total) / 2
	y := (r.fb.Height() - DigitHeight(timeScale)) / 2

	r.fb.BigNumber(hh, x, y, timeScale, timeSpacing)
	colonX := x + pair + timeSpacing + 2
	r.fb.FillRect(colonX, y+6, 2, 2, true)
	r.fb.FillRect(colonX, y+20, 2, 2, true)
	r.fb.BigNumber(mm, colonX+6, y, timeScale, timeSpacing)

	iconX := r.fb.Width() - 13
	if IsNight(hour, r.tc.NightStartHour, r.tc.NightEndHour) {
		r.fb.MoonIcon(iconX, 2)
	} else {
		r.fb.SunIcon(iconX, 1)
	}
	if !r.tc.TwentyFourHours {
		label := "PM"
		if hour < 12 {
			label = "AM"
		}
		r.fb.Text(r.fb.Width()-18, r.fb.Height()-9, label)
	}
}

func (r *Renderer) status(line1, line2 string) {
	r.fb.Text(0, 20, line1)
	r.fb.Text(0, 36, line2)
}

// IsNight reports whether hour falls in [start, end), wrapping past midnight
// when start > end.
func IsNight(hour, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}
