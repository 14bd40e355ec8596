package device

import (
	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/logging"
)

// Watchdog is fed once per tick; missing the deadline resets the board.
type Watchdog interface {
	Feed() error
	Close() error
}

type noopWatchdog struct{}

func (noopWatchdog) Feed() error  { return nil }
func (noopWatchdog) Close() error { return nil }

// NoopWatchdog is used when the watchdog is disabled or unavailable.
func NoopWatchdog() Watchdog {
	return noopWatchdog{}
}

var openWatchdog = OpenWatchdog

// WatchdogFromConfig arms the hardware watchdog when enabled and falls back
// to a noop one when it is disabled or cannot be opened.
func WatchdogFromConfig(cfg config.WatchdogConfig) Watchdog {
	if !cfg.Enabled {
		logging.Warn("Hardware watchdog disabled")
		return NoopWatchdog()
	}
	wd, err := openWatchdog(cfg.Device, cfg.Timeout)
	if err != nil {
		logging.Warn("Watchdog unavailable, continuing without", "device", cfg.Device, "error", err)
		return NoopWatchdog()
	}
	return wd
}
