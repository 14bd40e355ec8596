package poller

import (
	"context"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/voldisp"
)

// Status is a snapshot of the controller for telemetry.
func (p *SpeakerPoller) Status() voldisp.StatusMessage {
	msg := voldisp.StatusMessage{
		Timestamp:        p.deps.Clock.Wall().UTC(),
		State:            p.st.State.String(),
		Mode:             p.st.Mode.Kind.String(),
		Volume:           p.st.Speaker.Volume,
		Muted:            p.st.Speaker.Muted,
		Known:            p.st.Known,
		ErrorCount:       p.st.ErrorCount,
		Brightness:       uint8(p.deps.Brightness.Current()),
		BrightnessTarget: uint8(p.deps.Brightness.Target()),
		Dimmed:           p.deps.Brightness.Dimmed(),
		ClockSynced:      p.deps.Clock.Synced(),
	}
	if p.st.LastError != nil {
		msg.LastError = p.st.LastError.Error()
	}
	return msg
}

func (p *SpeakerPoller) publishStatus(ctx context.Context) {
	if p.deps.Status == nil {
		return
	}
	if err := p.deps.Status.PublishStatus(ctx, p.Status()); err != nil {
		logging.Warn("Failed to publish status", "error", err)
	}
}
