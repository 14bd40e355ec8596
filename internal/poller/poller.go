package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/fisaks/voldisp/internal/clock"
	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/voldisp"
)

// Deps are the collaborators of the poller. Button and Status are optional.
type Deps struct {
	Speaker    SpeakerClient
	Renderer   Renderer
	Brightness Brightness
	Watchdog   Watchdog
	Button     Button
	Link       NetworkLink
	Syncer     TimeSyncer
	Clock      clock.Clock
	Status     voldisp.StatusPublisher
	// FreeMemory runs on the housekeeping schedule; debug.FreeOSMemory by default.
	FreeMemory func()
}

type SpeakerPoller struct {
	cfg  *config.Config
	deps Deps
	loc  *time.Location

	st    ControllerState
	cmdCh chan voldisp.IncomingCommand
}

func NewSpeakerPoller(cfg *config.Config, deps Deps) (*SpeakerPoller, error) {
	switch {
	case deps.Speaker == nil:
		return nil, errors.New("speaker client is required")
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	case deps.Brightness == nil:
		return nil, errors.New("brightness control is required")
	case deps.Watchdog == nil:
		return nil, errors.New("watchdog is required")
	case deps.Link == nil:
		return nil, errors.New("network link is required")
	case deps.Syncer == nil:
		return nil, errors.New("time syncer is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if deps.FreeMemory == nil {
		deps.FreeMemory = freeMemory
	}
	bufSize := cfg.MQTT.CommandBufferSize
	if bufSize <= 0 {
		bufSize = 8
	}
	return &SpeakerPoller{
		cfg:   cfg,
		deps:  deps,
		loc:   cfg.Time.Location(),
		st:    ControllerState{State: Initializing},
		cmdCh: make(chan voldisp.IncomingCommand, bufSize),
	}, nil
}

// State returns a copy of the controller state.
func (p *SpeakerPoller) State() ControllerState { return p.st }

// StartPoller runs the tick loop until ctx is done. A non-nil error means the
// display failed and the process should exit.
func (p *SpeakerPoller) StartPoller(ctx context.Context) error {
	logging.Info("SpeakerPoller started", "speaker", p.cfg.Speaker.Addr(), "tick", p.cfg.Timing.TickInterval.String(), "reinitInterval", p.cfg.Timing.ReinitInterval.String())
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("SpeakerPoller ctx done")
			return nil
		case cmd := <-p.cmdCh:
			if err := p.handleCommand(ctx, cmd); err != nil {
				return p.loopError(ctx, err)
			}
			if p.st.reinitPending {
				t.Reset(0)
			}
		case <-t.C:
			if err := p.DrainCommands(ctx); err != nil {
				return p.loopError(ctx, err)
			}
			if err := p.Tick(ctx); err != nil {
				return p.loopError(ctx, err)
			}
			t.Reset(p.nextInterval())
		}
	}
}

func (p *SpeakerPoller) loopError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		logging.Info("SpeakerPoller ctx done")
		return nil
	}
	return fmt.Errorf("poller stopped: %w", err)
}

func (p *SpeakerPoller) nextInterval() time.Duration {
	if p.st.State == ShowingTime {
		return p.cfg.Timing.FastTickInterval
	}
	return p.cfg.Timing.TickInterval
}

// Tick runs one pass of the state machine.
func (p *SpeakerPoller) Tick(ctx context.Context) error {
	p.feed()
	now := p.deps.Clock.Now()
	tm := &p.st.Timers

	if now.Sub(tm.LastGc) >= p.cfg.Timing.GCInterval {
		p.deps.FreeMemory()
		tm.LastGc = now
	}

	err := p.step(ctx, now)
	p.publishStatus(ctx)
	return err
}

func (p *SpeakerPoller) step(ctx context.Context, now time.Time) error {
	tm := &p.st.Timers

	pressed := p.deps.Button != nil && p.deps.Button.Pressed()
	if pressed || p.st.reinitPending {
		p.st.reinitPending = false
		if now.Sub(tm.LastButton) >= p.cfg.Button.Debounce {
			tm.LastButton = now
			logging.Info("Reinit requested", "button", pressed)
			return p.reinit(ctx)
		}
		logging.Debug("Reinit request ignored, debouncing")
	}

	switch {
	case p.st.State == Initializing:
		return p.reinit(ctx)
	case p.st.State == Reinitializing:
		if !now.Before(tm.RetryAt) {
			return p.reinit(ctx)
		}
		return nil
	case now.Sub(tm.LastReinit) >= p.cfg.Timing.ReinitInterval:
		return p.reinit(ctx)
	case p.st.State == ShowingTime:
		return p.tickShowingTime(ctx, now)
	default:
		return p.tickNormal(ctx, now)
	}
}

func (p *SpeakerPoller) tickShowingTime(ctx context.Context, now time.Time) error {
	tm := &p.st.Timers
	if now.Sub(tm.TimeEntered) >= p.cfg.Timing.TimeDisplay {
		return p.leaveTime(ctx, now)
	}
	res := p.poll(ctx)
	if !res.Ok() {
		return p.pollFailed(res)
	}
	p.st.ErrorCount = 0
	p.st.LastError = nil
	if res.State != p.st.Speaker {
		logging.Info("Speaker changed during time display", "volume", res.State.Volume, "muted", res.State.Muted)
		return p.speakerChanged(now, res.State)
	}
	return nil
}

func (p *SpeakerPoller) tickNormal(ctx context.Context, now time.Time) error {
	tm := &p.st.Timers
	res := p.poll(ctx)
	if !res.Ok() {
		return p.pollFailed(res)
	}
	p.st.ErrorCount = 0
	p.st.LastError = nil

	switch {
	case !p.st.Known || res.State != p.st.Speaker:
		logging.Info("Speaker changed", "volume", res.State.Volume, "muted", res.State.Muted)
		return p.speakerChanged(now, res.State)
	case p.st.Mode.Kind != voldisp.ModeSpeaker:
		return p.render(voldisp.SpeakerMode(p.st.Speaker))
	case now.Sub(tm.LastTimeShown) >= p.cfg.Timing.TimeInterval:
		return p.enterTime(ctx, now)
	case !p.deps.Brightness.Dimmed() && now.Sub(tm.LastChange) >= p.cfg.Timing.IdleDim:
		logging.Debug("Idle, dimming display")
		_, err := p.deps.Brightness.FadeTo(ctx, p.deps.Brightness.Dim())
		return err
	}
	return nil
}

func (p *SpeakerPoller) poll(ctx context.Context) PollResult {
	vol, err := p.deps.Speaker.GetVolume(ctx)
	if err != nil {
		return PollResult{Err: err}
	}
	muted, err := p.deps.Speaker.GetMute(ctx)
	if err != nil {
		return PollResult{Err: err}
	}
	return PollResult{State: voldisp.SpeakerState{Volume: vol, Muted: muted}}
}

// pollFailed keeps the stale speaker state and shows the error screen once
// failures exceed the threshold.
func (p *SpeakerPoller) pollFailed(res PollResult) error {
	p.st.ErrorCount++
	p.st.LastError = res.Err
	logging.Warn("Poll failed", "speaker", p.cfg.Speaker.Addr(), "errorCount", p.st.ErrorCount, "error", res.Err)
	if p.st.ErrorCount <= p.cfg.Timing.ErrorThreshold {
		return nil
	}
	kind := voldisp.KindOf(res.Err)
	logging.Error("Speaker unreachable", "speaker", p.cfg.Speaker.Addr(), "kind", kind.String())
	p.st.ErrorCount = 0
	if p.st.State == ShowingTime {
		p.st.State = Normal
		p.st.Timers.LastTimeShown = p.deps.Clock.Now()
	}
	return p.render(voldisp.ErrorMode(kind))
}

func (p *SpeakerPoller) speakerChanged(now time.Time, s voldisp.SpeakerState) error {
	p.st.Speaker = s
	p.st.Known = true
	p.st.State = Normal
	p.st.Timers.LastChange = now
	p.st.Timers.LastTimeShown = now
	if err := p.render(voldisp.SpeakerMode(s)); err != nil {
		return err
	}
	return p.deps.Brightness.SetImmediate(p.deps.Brightness.Bright())
}

func (p *SpeakerPoller) enterTime(ctx context.Context, now time.Time) error {
	b := p.deps.Brightness
	prev := b.Current()
	if _, err := b.FadeTo(ctx, b.Dim()); err != nil {
		return err
	}
	p.feed()
	if err := p.render(voldisp.TimeMode(p.deps.Clock.Wall().In(p.loc))); err != nil {
		return err
	}
	if _, err := b.FadeTo(ctx, prev); err != nil {
		return err
	}
	p.st.State = ShowingTime
	p.st.Timers.TimeEntered = now
	logging.Debug("Showing time")
	return nil
}

func (p *SpeakerPoller) leaveTime(ctx context.Context, now time.Time) error {
	b := p.deps.Brightness
	if _, err := b.FadeTo(ctx, b.Dim()); err != nil {
		return err
	}
	p.feed()
	if err := p.render(voldisp.SpeakerMode(p.st.Speaker)); err != nil {
		return err
	}
	target := b.Bright()
	if now.Sub(p.st.Timers.LastChange) >= p.cfg.Timing.IdleDim {
		target = b.Dim()
	}
	if _, err := b.FadeTo(ctx, target); err != nil {
		return err
	}
	p.st.State = Normal
	p.st.Timers.LastTimeShown = now
	return nil
}

func (p *SpeakerPoller) render(mode voldisp.DisplayMode) error {
	if err := p.deps.Renderer.Render(mode); err != nil {
		logging.Error("Render failed", "mode", mode.Kind.String(), "error", err)
		return err
	}
	p.st.Mode = mode
	return nil
}

func (p *SpeakerPoller) feed() {
	if err := p.deps.Watchdog.Feed(); err != nil {
		logging.Error("Watchdog feed failed", "error", err)
	}
}

// sleep waits d in slices short enough to keep the watchdog fed.
func (p *SpeakerPoller) sleep(ctx context.Context, d time.Duration) error {
	const slice = time.Second
	for d > 0 {
		s := min(d, slice)
		p.feed()
		if err := p.deps.Clock.Sleep(ctx, s); err != nil {
			return err
		}
		d -= s
	}
	p.feed()
	return nil
}

func freeMemory() {
	debug.FreeOSMemory()
	if logging.DebugEnabled() {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		logging.Debug("Housekeeping", "heapAlloc", m.HeapAlloc, "heapSys", m.HeapSys, "numGC", m.NumGC)
	}
}
