package display

import (
	"fmt"
	"io"

	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/logging"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
)

// Panel is the physical (or simulated) screen.
type Panel interface {
	// Show replaces the visible image with buf (page layout, see Framebuffer).
	Show(buf []byte) error
	SetContrast(level uint8) error
	Close() error
}

// Open returns the panel described by cfg. periph host drivers must be
// initialized by the caller before a hardware panel is opened.
func Open(cfg config.DisplayConfig) (Panel, error) {
	if cfg.Headless {
		logging.Info("Using headless display", "width", cfg.Width, "height", cfg.Height)
		return NewHeadless(cfg.Width, cfg.Height), nil
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	oled, err := NewOLED(bus, cfg)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	logging.Info("SSD1306 ready", "bus", bus.String(), "address", fmt.Sprintf("0x%02X", cfg.Address), "width", cfg.Width, "height", cfg.Height)
	return oled, nil
}

// OLED drives an SSD1306 through the periph driver. The framebuffer layout is
// the controller's GDDRAM layout so frames are written as is.
type OLED struct {
	dev *ssd1306.Dev
	bus i2c.Bus
}

// NewOLED initializes the controller on bus. The bus is closed by Close when
// it implements io.Closer.
func NewOLED(bus i2c.Bus, cfg config.DisplayConfig) (*OLED, error) {
	var devBus i2c.Bus = bus
	if cfg.Address != 0 && cfg.Address != defaultAddress {
		devBus = &addressedBus{Bus: bus, addr: cfg.Address}
	}
	dev, err := ssd1306.NewI2C(devBus, &ssd1306.Opts{W: cfg.Width, H: cfg.Height})
	if err != nil {
		return nil, fmt.Errorf("init ssd1306 at 0x%02X on %s: %w", cfg.Address, bus, err)
	}
	return &OLED{dev: dev, bus: bus}, nil
}

func (o *OLED) Show(buf []byte) error {
	_, err := o.dev.Write(buf)
	return err
}

func (o *OLED) SetContrast(level uint8) error {
	return o.dev.SetContrast(level)
}

// Close switches the panel off and releases the bus.
func (o *OLED) Close() error {
	err := o.dev.Halt()
	if c, ok := o.bus.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// the periph driver always talks to 0x3C
const defaultAddress = 0x3C

// addressedBus redirects every transaction to addr.
type addressedBus struct {
	i2c.Bus
	addr uint16
}

func (b *addressedBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}
