package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fisaks/voldisp/internal/clock"
	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/display"
	"github.com/fisaks/voldisp/internal/voldisp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeSpeaker struct {
	log    *eventLog
	volume int
	muted  bool
	fail   bool
	calls  int
}

func (s *fakeSpeaker) GetVolume(ctx context.Context) (int, error) {
	s.calls++
	s.log.add("volume")
	if s.fail {
		return 0, voldisp.NewError(voldisp.DeviceUnresponsive, "GetVolume", errors.New("i/o timeout"))
	}
	return s.volume, nil
}

func (s *fakeSpeaker) GetMute(ctx context.Context) (bool, error) {
	s.log.add("mute")
	if s.fail {
		return false, voldisp.NewError(voldisp.DeviceUnresponsive, "GetMute", errors.New("i/o timeout"))
	}
	return s.muted, nil
}

type fakeRenderer struct {
	mu    sync.Mutex
	log   *eventLog
	modes []voldisp.DisplayMode
	fail  error
}

func (r *fakeRenderer) Render(mode voldisp.DisplayMode) error {
	r.log.add("render:" + mode.Kind.String())
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
	return nil
}

func (r *fakeRenderer) last() voldisp.DisplayMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.modes) == 0 {
		return voldisp.DisplayMode{}
	}
	return r.modes[len(r.modes)-1]
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modes)
}

type fakeWatchdog struct {
	log   *eventLog
	feeds int
}

func (w *fakeWatchdog) Feed() error {
	w.feeds++
	w.log.add("feed")
	return nil
}

type fakeButton struct{ pressed bool }

func (b *fakeButton) Pressed() bool {
	p := b.pressed
	b.pressed = false
	return p
}

type fakeLink struct{ up bool }

func (l *fakeLink) Associated() bool { return l.up }

type fakeSyncer struct {
	clk   *clock.Fake
	wall  time.Time
	err   error
	calls int
}

func (s *fakeSyncer) Sync(ctx context.Context) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.clk.SetWall(s.wall)
	return nil
}

type fakeStatus struct{ msgs []voldisp.StatusMessage }

func (s *fakeStatus) PublishStatus(ctx context.Context, msg voldisp.StatusMessage) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

type fixture struct {
	cfg      *config.Config
	clk      *clock.Fake
	log      *eventLog
	speaker  *fakeSpeaker
	renderer *fakeRenderer
	panel    *display.Headless
	bright   *display.Brightness
	wd       *fakeWatchdog
	button   *fakeButton
	link     *fakeLink
	syncer   *fakeSyncer
	status   *fakeStatus
	gcs      int
	p        *SpeakerPoller
}

func testConfig() *config.Config {
	return &config.Config{
		Network: config.NetworkConfig{JoinTimeout: 10 * time.Second, PollInterval: 500 * time.Millisecond},
		Speaker: config.SpeakerConfig{Host: "speaker.test", Port: 1400},
		Time:    config.TimeConfig{NightStartHour: 22, NightEndHour: 5},
		Display: config.DisplayConfig{Width: 128, Height: 64, Bright: 255, Dim: 5, FadeStep: 5, FadeStepDelay: 10 * time.Millisecond},
		Button:  config.ButtonConfig{Enabled: true, Debounce: 500 * time.Millisecond},
		Timing: config.TimingConfig{
			TickInterval:     500 * time.Millisecond,
			FastTickInterval: 150 * time.Millisecond,
			IdleDim:          30 * time.Second,
			TimeInterval:     60 * time.Second,
			TimeDisplay:      5 * time.Second,
			ReinitInterval:   300 * time.Second,
			GCInterval:       60 * time.Second,
			ErrorThreshold:   5,
			StepMinDuration:  time.Second,
			RetryBackoff:     5 * time.Second,
		},
		MQTT: config.MQTTConfig{CommandBufferSize: 2},
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	f := &fixture{
		cfg:    cfg,
		clk:    clock.NewFake(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		log:    &eventLog{},
		panel:  display.NewHeadless(128, 64),
		button: &fakeButton{},
		link:   &fakeLink{up: true},
		status: &fakeStatus{},
	}
	f.speaker = &fakeSpeaker{log: f.log, volume: 20}
	f.renderer = &fakeRenderer{log: f.log}
	f.wd = &fakeWatchdog{log: f.log}
	f.bright = display.NewBrightness(f.panel, f.clk, cfg.Display)
	f.syncer = &fakeSyncer{clk: f.clk, wall: time.Date(2024, 6, 1, 21, 30, 0, 0, time.UTC)}

	p, err := NewSpeakerPoller(cfg, Deps{
		Speaker:    f.speaker,
		Renderer:   f.renderer,
		Brightness: f.bright,
		Watchdog:   f.wd,
		Button:     f.button,
		Link:       f.link,
		Syncer:     f.syncer,
		Clock:      f.clk,
		Status:     f.status,
		FreeMemory: func() { f.gcs++ },
	})
	require.NoError(t, err)
	f.p = p
	return f
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, f.p.Tick(context.Background()))
}

// bringUp runs the first tick: reinit followed by the initial poll.
func (f *fixture) bringUp(t *testing.T) {
	t.Helper()
	f.tick(t)
	require.Equal(t, Normal, f.p.State().State)
	require.Equal(t, voldisp.ModeSpeaker, f.renderer.last().Kind)
}

func TestNewSpeakerPollerRequiresDeps(t *testing.T) {
	_, err := NewSpeakerPoller(testConfig(), Deps{})
	assert.Error(t, err)
}

func TestFirstTickReinitializes(t *testing.T) {
	f := newFixture(t)
	start := f.clk.Now()
	f.tick(t)

	st := f.p.State()
	assert.Equal(t, Normal, st.State)
	assert.True(t, st.Known)
	assert.Equal(t, voldisp.SpeakerState{Volume: 20}, st.Speaker)
	assert.Equal(t, 1, f.syncer.calls)
	assert.Equal(t, 1, f.gcs)
	assert.Equal(t, start.Add(4*time.Second), st.Timers.LastReinit, "four status steps of one second")

	var screens []string
	for _, m := range f.renderer.modes {
		if m.Kind == voldisp.ModeStatus {
			screens = append(screens, m.Line1)
		}
	}
	assert.Equal(t, []string{"Connecting", "WiFi OK", "Syncing", "Time Synced"}, screens)
	assert.Equal(t, voldisp.SpeakerMode(voldisp.SpeakerState{Volume: 20}), f.renderer.last())
	assert.Equal(t, 255, f.bright.Current())
	assert.True(t, f.clk.Synced())
}

func TestWatchdogFedFirst(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)

	f.log.reset()
	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)
	events := f.log.list()
	require.NotEmpty(t, events)
	assert.Equal(t, "feed", events[0])
	assert.Contains(t, events, "volume")
}

func TestStaleStateOnFailure(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	renders := f.renderer.count()

	f.speaker.fail = true
	f.speaker.volume = 90
	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)

	st := f.p.State()
	assert.Equal(t, voldisp.SpeakerState{Volume: 20}, st.Speaker)
	assert.Equal(t, 1, st.ErrorCount)
	assert.Equal(t, voldisp.DeviceUnresponsive, voldisp.KindOf(st.LastError))
	assert.Equal(t, renders, f.renderer.count(), "no re-render on failure")
}

func TestErrorScreenAfterThreshold(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	f.speaker.fail = true

	for i := 1; i <= 5; i++ {
		f.clk.Advance(500 * time.Millisecond)
		f.tick(t)
		assert.Equal(t, i, f.p.State().ErrorCount)
		assert.Equal(t, voldisp.ModeSpeaker, f.renderer.last().Kind)
	}

	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)
	st := f.p.State()
	assert.Zero(t, st.ErrorCount)
	assert.Equal(t, Normal, st.State)
	assert.Equal(t, voldisp.ErrorMode(voldisp.DeviceUnresponsive), f.renderer.last())
	assert.Equal(t, voldisp.SpeakerState{Volume: 20}, st.Speaker)

	// recovery with unchanged state brings the speaker screen back
	f.speaker.fail = false
	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)
	assert.Equal(t, voldisp.SpeakerMode(voldisp.SpeakerState{Volume: 20}), f.renderer.last())
	assert.Zero(t, f.p.State().ErrorCount)
}

func TestSpeakerChangeRendersBright(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	require.NoError(t, f.bright.SetImmediate(5))

	f.speaker.muted = true
	f.clk.Advance(500 * time.Millisecond)
	now := f.clk.Now()
	f.tick(t)

	st := f.p.State()
	assert.Equal(t, voldisp.SpeakerState{Volume: 20, Muted: true}, st.Speaker)
	assert.Equal(t, voldisp.SpeakerMode(st.Speaker), f.renderer.last())
	assert.Equal(t, 255, f.bright.Current())
	assert.Equal(t, now, st.Timers.LastChange)
	assert.Equal(t, now, st.Timers.LastTimeShown)
}

func TestIdleDim(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)

	f.clk.Advance(29 * time.Second)
	f.tick(t)
	assert.False(t, f.bright.Dimmed(), "29s idle stays bright")

	f.clk.Advance(2 * time.Second)
	f.tick(t)
	assert.True(t, f.bright.Dimmed(), "31s idle dims")
	assert.Equal(t, 5, f.bright.Current())
	assert.Equal(t, uint8(5), f.panel.Contrast())
}

func TestTimeDisplayPreemptedBySpeakerChange(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Time.TimezoneOffset = 2 })
	f.bringUp(t)

	f.clk.Advance(60 * time.Second)
	f.tick(t)
	require.Equal(t, ShowingTime, f.p.State().State)
	tm := f.renderer.last()
	require.Equal(t, voldisp.ModeTime, tm.Kind)
	assert.Equal(t, 23, tm.Time.Hour(), "wall time shifted to the configured zone")
	assert.Equal(t, 255, f.bright.Current(), "brightness restored after the fade")
	assert.Equal(t, 150*time.Millisecond, f.p.nextInterval())

	f.speaker.volume = 35
	f.clk.Advance(time.Second)
	f.tick(t)

	st := f.p.State()
	assert.Equal(t, Normal, st.State)
	assert.Equal(t, voldisp.SpeakerMode(voldisp.SpeakerState{Volume: 35}), f.renderer.last())
	assert.Equal(t, 255, f.bright.Current())
	assert.Less(t, f.clk.Now().Sub(st.Timers.TimeEntered), f.cfg.Timing.TimeDisplay)
}

func TestTimeDisplayExpires(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)

	f.clk.Advance(60 * time.Second)
	f.tick(t)
	require.Equal(t, ShowingTime, f.p.State().State)

	f.clk.Advance(2 * time.Second)
	f.tick(t)
	assert.Equal(t, ShowingTime, f.p.State().State)

	f.clk.Advance(3 * time.Second)
	now := f.clk.Now()
	f.tick(t)
	st := f.p.State()
	assert.Equal(t, Normal, st.State)
	assert.Equal(t, voldisp.ModeSpeaker, f.renderer.last().Kind)
	assert.Equal(t, now, st.Timers.LastTimeShown)
	assert.True(t, f.bright.Dimmed(), "idle for over 30s, so back to dim")
}

func TestButtonAndScheduledReinitSameTick(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	before := f.p.State().Timers.LastReinit

	f.clk.Advance(300 * time.Second)
	f.button.pressed = true
	pressedAt := f.clk.Now()
	f.tick(t)

	st := f.p.State()
	assert.Equal(t, 2, f.syncer.calls)
	assert.Equal(t, pressedAt, st.Timers.LastButton)
	assert.True(t, st.Timers.LastReinit.After(before))
	assert.Equal(t, Normal, st.State)

	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)
	assert.Equal(t, 2, f.syncer.calls, "reinit ran exactly once")
}

func TestButtonDebounce(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Timing.StepMinDuration = 0 })
	f.bringUp(t)

	f.clk.Advance(time.Second)
	f.button.pressed = true
	f.tick(t)
	assert.Equal(t, 2, f.syncer.calls)

	f.clk.Advance(200 * time.Millisecond)
	f.button.pressed = true
	f.tick(t)
	assert.Equal(t, 2, f.syncer.calls, "within debounce window")

	f.clk.Advance(400 * time.Millisecond)
	f.button.pressed = true
	f.tick(t)
	assert.Equal(t, 3, f.syncer.calls)
}

func TestReinitRetriesAfterNetworkTimeout(t *testing.T) {
	f := newFixture(t)
	f.link.up = false
	start := f.clk.Now()

	f.tick(t)
	st := f.p.State()
	assert.Equal(t, Reinitializing, st.State)
	assert.Equal(t, voldisp.ErrorMode(voldisp.NetworkUnreachable), f.renderer.last())
	assert.Equal(t, voldisp.NetworkUnreachable, voldisp.KindOf(st.LastError))
	assert.Equal(t, start.Add(16*time.Second), st.Timers.RetryAt, "10s join timeout, 1s error screen, 5s backoff")
	assert.Zero(t, f.syncer.calls)
	assert.Zero(t, f.speaker.calls)
	assert.GreaterOrEqual(t, f.wd.feeds, 20, "fed while waiting for the link")

	f.clk.Advance(2 * time.Second)
	f.tick(t)
	assert.Equal(t, Reinitializing, f.p.State().State)
	assert.Zero(t, f.speaker.calls, "waiting for retry")

	f.link.up = true
	f.clk.Advance(3 * time.Second)
	f.tick(t)
	assert.Equal(t, Normal, f.p.State().State)
	assert.Equal(t, 1, f.syncer.calls)
	assert.Equal(t, voldisp.ModeSpeaker, f.renderer.last().Kind)
}

func TestReinitNTPFailure(t *testing.T) {
	f := newFixture(t)
	f.syncer.err = errors.New("read udp: i/o timeout")

	f.tick(t)
	st := f.p.State()
	assert.Equal(t, Reinitializing, st.State)
	assert.Equal(t, voldisp.ErrorMode(voldisp.TimeSyncFailed), f.renderer.last())
	assert.False(t, st.Timers.RetryAt.IsZero())

	f.syncer.err = nil
	f.clk.Advance(f.cfg.Timing.RetryBackoff)
	f.tick(t)
	assert.Equal(t, Normal, f.p.State().State)
	assert.Equal(t, 2, f.syncer.calls)
}

func TestRenderFaultStopsTick(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)

	f.renderer.fail = voldisp.NewError(voldisp.RenderFault, "render", errors.New("i2c: nack"))
	f.speaker.volume = 50
	f.clk.Advance(500 * time.Millisecond)
	err := f.p.Tick(context.Background())
	assert.Equal(t, voldisp.RenderFault, voldisp.KindOf(err))
}

func TestHousekeepingSchedule(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	require.Equal(t, 1, f.gcs)

	f.clk.Advance(30 * time.Second)
	f.tick(t)
	assert.Equal(t, 1, f.gcs)

	f.clk.Advance(30 * time.Second)
	f.tick(t)
	assert.Equal(t, 2, f.gcs)
}

func TestCommands(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	ctx := context.Background()

	assert.Error(t, f.p.OnCommand(ctx, voldisp.IncomingCommand{Action: "explode"}))

	// wake
	require.NoError(t, f.bright.SetImmediate(5))
	f.clk.Advance(10 * time.Second)
	require.NoError(t, f.p.OnCommand(ctx, voldisp.IncomingCommand{ID: "1", Action: "Wake"}))
	require.NoError(t, f.p.DrainCommands(ctx))
	assert.Equal(t, 255, f.bright.Current())
	assert.Equal(t, f.clk.Now(), f.p.State().Timers.LastChange)

	// refresh
	renders := f.renderer.count()
	require.NoError(t, f.p.OnCommand(ctx, voldisp.IncomingCommand{Action: "refresh"}))
	require.NoError(t, f.p.DrainCommands(ctx))
	assert.Equal(t, renders+1, f.renderer.count())
	assert.Equal(t, voldisp.ModeSpeaker, f.renderer.last().Kind)

	// reinit is taken by the next tick
	require.NoError(t, f.p.OnCommand(ctx, voldisp.IncomingCommand{Action: "reinit"}))
	require.NoError(t, f.p.DrainCommands(ctx))
	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)
	assert.Equal(t, 2, f.syncer.calls)
}

func TestCommandBufferFull(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}))
	assert.True(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}))
	assert.False(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}))
	assert.Error(t, f.p.OnCommand(context.Background(), voldisp.IncomingCommand{Action: "wake"}))
}

func TestStatusPublishedEveryTick(t *testing.T) {
	f := newFixture(t)
	f.bringUp(t)
	require.Len(t, f.status.msgs, 1)

	msg := f.status.msgs[0]
	assert.Equal(t, "normal", msg.State)
	assert.Equal(t, "speaker", msg.Mode)
	assert.Equal(t, 20, msg.Volume)
	assert.True(t, msg.Known)
	assert.True(t, msg.ClockSynced)
	assert.Equal(t, uint8(255), msg.Brightness)
	assert.Equal(t, uint8(255), msg.BrightnessTarget)
	assert.Empty(t, msg.LastError)

	f.speaker.fail = true
	f.clk.Advance(500 * time.Millisecond)
	f.tick(t)
	require.Len(t, f.status.msgs, 2)
	assert.Equal(t, 1, f.status.msgs[1].ErrorCount)
	assert.NotEmpty(t, f.status.msgs[1].LastError)
}

func TestStartPollerRunsUntilCancelled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Timing.TickInterval = 5 * time.Millisecond
		c.Timing.FastTickInterval = 5 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.StartPoller(ctx) }()

	require.Eventually(t, func() bool {
		return f.renderer.last().Kind == voldisp.ModeSpeaker
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestStartPollerDrainsQueuedCommands(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Timing.TickInterval = 5 * time.Millisecond
		c.Timing.FastTickInterval = 5 * time.Millisecond
	})
	require.True(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "refresh"}))
	require.True(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}))
	require.False(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}), "buffer full before start")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.StartPoller(ctx) }()

	require.Eventually(t, func() bool {
		return f.renderer.last().Kind == voldisp.ModeSpeaker
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}))
	assert.True(t, f.p.PushCommand(voldisp.IncomingCommand{Action: "wake"}))
}
