package voldisp

import (
	"context"
	"time"
)

// SpeakerState is the last observed volume/mute pair of the speaker.
type SpeakerState struct {
	Volume int  `json:"volume"` // 0..100 after scaling
	Muted  bool `json:"muted"`
}

type ModeKind uint8

const (
	ModeSpeaker ModeKind = iota + 1
	ModeTime
	ModeStatus
	ModeError
)

func (k ModeKind) String() string {
	switch k {
	case ModeSpeaker:
		return "speaker"
	case ModeTime:
		return "time"
	case ModeStatus:
		return "status"
	case ModeError:
		return "error"
	}
	return "none"
}

// DisplayMode is the screen currently shown. Only the fields matching Kind are set.
type DisplayMode struct {
	Kind    ModeKind
	Speaker SpeakerState
	Time    time.Time // local wall time, already offset to the configured zone
	Line1   string
	Line2   string
	Error   ErrorKind
}

func SpeakerMode(s SpeakerState) DisplayMode { return DisplayMode{Kind: ModeSpeaker, Speaker: s} }
func TimeMode(t time.Time) DisplayMode       { return DisplayMode{Kind: ModeTime, Time: t} }
func ErrorMode(k ErrorKind) DisplayMode      { return DisplayMode{Kind: ModeError, Error: k} }

func StatusMode(line1, line2 string) DisplayMode {
	return DisplayMode{Kind: ModeStatus, Line1: line1, Line2: line2}
}

// StatusMessage is what the appliance reports about itself after every tick.
type StatusMessage struct {
	Timestamp        time.Time `json:"timestamp"`
	State            string    `json:"state"`
	Mode             string    `json:"mode"`
	Volume           int       `json:"volume"`
	Muted            bool      `json:"muted"`
	Known            bool      `json:"known"`
	ErrorCount       int       `json:"errorCount"`
	Brightness       uint8     `json:"brightness"`
	BrightnessTarget uint8     `json:"brightnessTarget"`
	Dimmed           bool      `json:"dimmed"`
	ClockSynced      bool      `json:"clockSynced"`
	LastError        string    `json:"lastError,omitempty"`
}

type IncomingCommand struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"` // "reinit" | "refresh" | "wake"
}

type CommandPusher interface {
	PushCommand(cmd IncomingCommand) bool
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, status StatusMessage) error
}

type CommandSubscriber interface {
	OnCommand(ctx context.Context, command IncomingCommand) error
}
