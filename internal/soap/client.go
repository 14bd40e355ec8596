package soap

import (
	"context"
	"errors"

	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/voldisp"
)

var (
	ErrNoVolumeField = errors.New("no CurrentVolume in response")
	ErrNoMuteField   = errors.New("no CurrentMute in response")
)

// Client queries a single speaker's RenderingControl service.
type Client struct {
	cfg       config.SpeakerConfig
	transport Transport
}

func NewClient(cfg config.SpeakerConfig, transport Transport) *Client {
	if transport == nil {
		transport = NewTCPTransport(cfg.Timeout, cfg.MaxResponse)
	}
	return &Client{cfg: cfg, transport: transport}
}

func (c *Client) call(ctx context.Context, action string) ([]byte, error) {
	req := BuildRequest(c.cfg.Host, c.cfg.Port, c.cfg.ControlPath, c.cfg.ServiceType, action)
	resp, err := c.transport.RoundTrip(ctx, c.cfg.Addr(), req)
	if err != nil {
		return nil, voldisp.NewError(voldisp.DeviceUnresponsive, action, err)
	}
	logging.Debug("SOAP response", "action", action, "bytes", len(resp))
	return resp, nil
}

func (c *Client) GetVolume(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, ActionGetVolume)
	if err != nil {
		return 0, err
	}
	v, ok := ParseVolume(resp, c.cfg.VolumeDivisor)
	if !ok {
		return 0, voldisp.NewError(voldisp.DeviceUnresponsive, ActionGetVolume, ErrNoVolumeField)
	}
	return v, nil
}

func (c *Client) GetMute(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, ActionGetMute)
	if err != nil {
		return false, err
	}
	m, ok := ParseMute(resp)
	if !ok {
		return false, voldisp.NewError(voldisp.DeviceUnresponsive, ActionGetMute, ErrNoMuteField)
	}
	return m, nil
}
