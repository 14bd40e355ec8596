package poller

import (
	"time"

	"github.com/fisaks/voldisp/internal/voldisp"
)

type State uint8

const (
	Initializing State = iota
	Normal
	ShowingTime
	Reinitializing
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Normal:
		return "normal"
	case ShowingTime:
		return "showing_time"
	case Reinitializing:
		return "reinitializing"
	}
	return "unknown"
}

// Timers are the last times each tracked event happened.
type Timers struct {
	LastChange    time.Time
	LastTimeShown time.Time
	LastReinit    time.Time
	LastButton    time.Time
	LastGc        time.Time
	TimeEntered   time.Time
	// RetryAt is when a failed reinit is attempted again.
	RetryAt time.Time
}

// ControllerState is everything the tick reads and writes.
type ControllerState struct {
	State      State
	Speaker    voldisp.SpeakerState
	Known      bool
	ErrorCount int
	Mode       voldisp.DisplayMode
	Timers     Timers
	LastError  error

	reinitPending bool
}
