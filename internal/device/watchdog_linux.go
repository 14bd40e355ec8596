//go:build linux

package device

import (
	"fmt"
	"os"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"golang.org/x/sys/unix"
)

type linuxWatchdog struct {
	f *os.File
}

// OpenWatchdog opens the kernel watchdog device and sets its timeout. The
// board resets if Feed is not called within timeout from now on.
func OpenWatchdog(device string, timeout time.Duration) (Watchdog, error) {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	secs := int(timeout.Round(time.Second) / time.Second)
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		logging.Warn("Watchdog timeout not accepted, keeping driver default", "device", device, "timeout", secs, "error", err)
	}
	logging.Info("Watchdog armed", "device", device, "timeout", timeout.String())
	return &linuxWatchdog{f: f}, nil
}

func (w *linuxWatchdog) Feed() error {
	_, err := w.f.Write([]byte{0})
	return err
}

// Close disarms the watchdog with the magic close character.
func (w *linuxWatchdog) Close() error {
	_, err := w.f.Write([]byte("V"))
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
