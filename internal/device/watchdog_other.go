//go:build !linux

package device

import (
	"errors"
	"time"
)

func OpenWatchdog(device string, timeout time.Duration) (Watchdog, error) {
	return nil, errors.New("hardware watchdog is only supported on linux")
}
