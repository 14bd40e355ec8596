package poller

import (
	"context"
	"errors"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/voldisp"
)

var ErrJoinTimeout = errors.New("network not associated within join timeout")

// reinit brings the network and clock back up. Failures leave the poller in
// Reinitializing with a retry scheduled; only render faults and cancellation
// are returned.
func (p *SpeakerPoller) reinit(ctx context.Context) error {
	p.st.State = Reinitializing
	logging.Info("Reinitializing", "retry", !p.st.Timers.RetryAt.IsZero())

	if err := p.showStep(ctx, voldisp.StatusMode("Connecting", "WiFi..."), p.joinNetwork); err != nil {
		return p.reinitFailed(ctx, err)
	}
	if err := p.showStep(ctx, voldisp.StatusMode("WiFi OK", ""), nil); err != nil {
		return err
	}
	if err := p.showStep(ctx, voldisp.StatusMode("Syncing", "Time..."), p.syncClock); err != nil {
		return p.reinitFailed(ctx, err)
	}
	if err := p.showStep(ctx, voldisp.StatusMode("Time Synced", ""), nil); err != nil {
		return err
	}

	now := p.deps.Clock.Now()
	p.st.Timers.LastReinit = now
	p.st.Timers.RetryAt = time.Time{}
	p.st.Known = false
	p.st.ErrorCount = 0
	p.st.LastError = nil
	p.st.State = Normal
	logging.Info("Reinit complete", "wall", p.deps.Clock.Wall().In(p.loc).Format("15:04:05"))
	return p.tickNormal(ctx, now)
}

// showStep renders mode, runs action and keeps the screen up for at least
// timing.step-min-duration.
func (p *SpeakerPoller) showStep(ctx context.Context, mode voldisp.DisplayMode, action func(context.Context) error) error {
	if err := p.render(mode); err != nil {
		return err
	}
	shown := p.deps.Clock.Now()
	var actionErr error
	if action != nil {
		actionErr = action(ctx)
	}
	if err := p.holdSince(ctx, shown); err != nil {
		return err
	}
	return actionErr
}

func (p *SpeakerPoller) holdSince(ctx context.Context, shown time.Time) error {
	return p.sleep(ctx, p.cfg.Timing.StepMinDuration-p.deps.Clock.Now().Sub(shown))
}

func (p *SpeakerPoller) joinNetwork(ctx context.Context) error {
	start := p.deps.Clock.Now()
	for !p.deps.Link.Associated() {
		if p.deps.Clock.Now().Sub(start) >= p.cfg.Network.JoinTimeout {
			return voldisp.NewError(voldisp.NetworkUnreachable, "join network", ErrJoinTimeout)
		}
		if err := p.sleep(ctx, p.cfg.Network.PollInterval); err != nil {
			return err
		}
	}
	logging.Info("Network associated", "interface", p.cfg.Network.Interface, "waited", p.deps.Clock.Now().Sub(start).String())
	return nil
}

func (p *SpeakerPoller) syncClock(ctx context.Context) error {
	err := p.deps.Syncer.Sync(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	var typed *voldisp.Error
	if errors.As(err, &typed) {
		return err
	}
	return voldisp.NewError(voldisp.TimeSyncFailed, "sync clock", err)
}

func (p *SpeakerPoller) reinitFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	kind := voldisp.KindOf(err)
	if kind == voldisp.RenderFault {
		return err
	}
	p.st.LastError = err
	logging.Warn("Reinit failed", "kind", kind.String(), "error", err, "retryIn", p.cfg.Timing.RetryBackoff.String())
	if err := p.render(voldisp.ErrorMode(kind)); err != nil {
		return err
	}
	if err := p.holdSince(ctx, p.deps.Clock.Now()); err != nil {
		return err
	}
	p.st.Timers.RetryAt = p.deps.Clock.Now().Add(p.cfg.Timing.RetryBackoff)
	return nil
}
