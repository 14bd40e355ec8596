package voldisp

import (
	"errors"
	"fmt"
)

type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	NetworkUnreachable
	DeviceUnresponsive
	TimeSyncFailed
	RenderFault
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkUnreachable:
		return "network_unreachable"
	case DeviceUnresponsive:
		return "device_unresponsive"
	case TimeSyncFailed:
		return "time_sync_failed"
	case RenderFault:
		return "render_fault"
	}
	return "none"
}

// Label is the two-line text shown on the error screen.
func (k ErrorKind) Label() (string, string) {
	switch k {
	case NetworkUnreachable:
		return "WiFi", "Timeout"
	case DeviceUnresponsive:
		return "Speaker", "No Reply"
	case TimeSyncFailed:
		return "NTP", "Error"
	case RenderFault:
		return "Display", "Fault"
	}
	return "Error", ""
}

// Error carries the failure kind of a collaborator call.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindNone for nil
// and DeviceUnresponsive for untyped errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return DeviceUnresponsive
}
