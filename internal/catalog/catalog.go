package catalog

import (
	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/messaging"
)

// ApplianceInfoMessage describes the appliance to anyone watching the broker.
// Published retained on every connect.
type ApplianceInfoMessage struct {
	Name     string         `json:"name"`
	Version  string         `json:"version"`
	Speaker  SpeakerSummary `json:"speaker"`
	Display  DisplaySummary `json:"display"`
	Button   bool           `json:"button"`
	Watchdog bool           `json:"watchdog"`
	Commands []string       `json:"commands"`
	Timing   TimingSummary  `json:"timing"`
}

type SpeakerSummary struct {
	Addr        string `json:"addr"`
	ControlPath string `json:"controlPath"`
}

type DisplaySummary struct {
	Width    int  `json:"width"`
	Height   int  `json:"height"`
	Headless bool `json:"headless"`
	Bright   int  `json:"bright"`
	Dim      int  `json:"dim"`
}

type TimingSummary struct {
	IdleDimSec        int `json:"idleDimSec"`
	TimeIntervalSec   int `json:"timeIntervalSec"`
	ReinitIntervalSec int `json:"reinitIntervalSec"`
	ErrorThreshold    int `json:"errorThreshold"`
}

type Catalog struct {
	cfg      *config.Config
	version  string
	commands []string
}

func NewApplianceCatalog(cfg *config.Config, version string, commands []string) *Catalog {
	return &Catalog{cfg: cfg, version: version, commands: commands}
}

func (c *Catalog) Build() ApplianceInfoMessage {
	cfg := c.cfg
	return ApplianceInfoMessage{
		Name:    cfg.MQTT.ClientName,
		Version: c.version,
		Speaker: SpeakerSummary{
			Addr:        cfg.Speaker.Addr(),
			ControlPath: cfg.Speaker.ControlPath,
		},
		Display: DisplaySummary{
			Width:    cfg.Display.Width,
			Height:   cfg.Display.Height,
			Headless: cfg.Display.Headless,
			Bright:   cfg.Display.Bright,
			Dim:      cfg.Display.Dim,
		},
		Button:   cfg.Button.Enabled,
		Watchdog: cfg.Watchdog.Enabled,
		Commands: c.commands,
		Timing: TimingSummary{
			IdleDimSec:        int(cfg.Timing.IdleDim.Seconds()),
			TimeIntervalSec:   int(cfg.Timing.TimeInterval.Seconds()),
			ReinitIntervalSec: int(cfg.Timing.ReinitInterval.Seconds()),
			ErrorThreshold:    cfg.Timing.ErrorThreshold,
		},
	}
}

// OnConnectPublish returns the info message for the "info" topic below the prefix.
func (c *Catalog) OnConnectPublish() (messaging.PublishRequest, error) {
	return messaging.PublishRequest{
		Topic:   "info",
		Qos:     messaging.AtLeastOnce,
		Retain:  true,
		Payload: c.Build(),
	}, nil
}
