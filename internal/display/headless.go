package display

import (
	"strings"
	"sync"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/util"
)

// Headless keeps the last frame in memory and logs it at debug level. Used
// when no panel is attached and by tests.
type Headless struct {
	mu       sync.Mutex
	width    int
	height   int
	frame    []byte
	contrast uint8
	frames   int
	closed   bool
}

func NewHeadless(width, height int) *Headless {
	return &Headless{width: width, height: height, contrast: 0xFF}
}

func (h *Headless) Show(buf []byte) error {
	h.mu.Lock()
	h.frame = append(h.frame[:0], buf...)
	h.frames++
	h.mu.Unlock()
	if logging.DebugEnabled() {
		logging.Debug("Frame", "rows", "\n"+strings.Join(h.Rows(), "\n"))
	}
	return nil
}

func (h *Headless) SetContrast(level uint8) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contrast = level
	return nil
}

func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *Headless) Contrast() uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contrast
}

// Frames is the number of Show calls so far.
func (h *Headless) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Rows renders the last frame as text, '#' for lit pixels.
func (h *Headless) Rows() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return util.PagesToRows(h.frame, h.width, h.height, '#', '.')
}
