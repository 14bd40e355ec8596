package poller

import (
	"context"

	"github.com/fisaks/voldisp/internal/voldisp"
)

type SpeakerClient interface {
	GetVolume(ctx context.Context) (int, error)
	GetMute(ctx context.Context) (bool, error)
}

type Renderer interface {
	Render(mode voldisp.DisplayMode) error
}

type Brightness interface {
	SetImmediate(level int) error
	FadeTo(ctx context.Context, level int) (int, error)
	Current() int
	Target() int
	Dimmed() bool
	Dim() int
	Bright() int
}

type Watchdog interface {
	Feed() error
}

type Button interface {
	Pressed() bool
}

type NetworkLink interface {
	Associated() bool
}

type TimeSyncer interface {
	Sync(ctx context.Context) error
}

// PollResult is the outcome of one volume+mute query pair.
type PollResult struct {
	State voldisp.SpeakerState
	Err   error
}

func (r PollResult) Ok() bool { return r.Err == nil }
