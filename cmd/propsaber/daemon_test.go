package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances only when the controller sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// mockAudio records plays; playing is controlled by the test.
type mockAudio struct {
	mu      sync.Mutex
	plays   []string
	playing bool
	missing map[string]bool
}

func (a *mockAudio) Play(name string, loop bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.missing[name] {
		return ErrClipMissing
	}
	if loop {
		name += "(loop)"
	}
	a.plays = append(a.plays, name)
	return nil
}

func (a *mockAudio) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *mockAudio) setPlaying(v bool) {
	a.mu.Lock()
	a.playing = v
	a.mu.Unlock()
}

func (a *mockAudio) Plays() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.plays)
}

type mockLight struct {
	mu     sync.Mutex
	colors []RGB
	err    error
}

func (l *mockLight) SetColor(c RGB) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.colors = append(l.colors, c)
	return nil
}

func (l *mockLight) Colors() []RGB {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.colors)
}

func (l *mockLight) Last() RGB {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.colors) == 0 {
		return Black
	}
	return l.colors[len(l.colors)-1]
}

type mockButton struct {
	mu      sync.Mutex
	pressed bool
}

func (b *mockButton) IsPressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pressed
}

func (b *mockButton) set(v bool) {
	b.mu.Lock()
	b.pressed = v
	b.mu.Unlock()
}

// mockSensor returns queued samples, then rest.
type mockSensor struct {
	mu      sync.Mutex
	samples []Sample
	err     error
}

func (s *mockSensor) push(smp Sample) {
	s.mu.Lock()
	s.samples = append(s.samples, smp)
	s.mu.Unlock()
}

func (s *mockSensor) Read() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Sample{}, s.err
	}
	if len(s.samples) == 0 {
		return Sample{Y: standardGravity}, nil
	}
	smp := s.samples[0]
	s.samples = s.samples[1:]
	return smp, nil
}

type mockEnable struct {
	mu     sync.Mutex
	levels []bool
}

func (e *mockEnable) SetEnabled(on bool) error {
	e.mu.Lock()
	e.levels = append(e.levels, on)
	e.mu.Unlock()
	return nil
}

type testRig struct {
	ctrl   *Controller
	clock  *fakeClock
	audio  *mockAudio
	light  *mockLight
	status *mockLight
	button *mockButton
	sensor *mockSensor
	enable *mockEnable
	bcast  chan StateBroadcast
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	r := &testRig{
		clock:  newFakeClock(),
		audio:  &mockAudio{},
		light:  &mockLight{},
		status: &mockLight{},
		button: &mockButton{},
		sensor: &mockSensor{},
		enable: &mockEnable{},
		bcast:  make(chan StateBroadcast, 256),
	}
	logger := testLogger()
	fb := NewFeedbackDriver(FeedbackConfig{
		Audio:      r.audio,
		Light:      r.light,
		Status:     r.status,
		SwingClips: []string{"swing1", "swing2"},
		HitClips:   []string{"hit1", "hit2"},
		Pick:       func(int) int { return 0 },
	}, logger)

	r.ctrl = NewController(ControllerOptions{
		Config: testControllerConfig(),
		Tick:   200 * time.Millisecond,
		Peripherals: Peripherals{
			Sensor: r.sensor,
			Button: r.button,
			Wheel:  fixedColor(red),
			Enable: r.enable,
		},
		Feedback:   fb,
		Clock:      r.clock,
		Broadcasts: r.bcast,
	}, logger)
	return r
}

// tick runs one controller iteration followed by the tick sleep.
func (r *testRig) tick(ctx context.Context) {
	r.ctrl.Step(ctx, nil)
	r.clock.Advance(200 * time.Millisecond)
}

// powerOn clicks the button once and releases it.
func (r *testRig) powerOn(t *testing.T, ctx context.Context) {
	t.Helper()
	r.button.set(true)
	r.tick(ctx)
	r.button.set(false)
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeIdle {
		t.Fatalf("expected mode idle after power on, got %s", m)
	}
}

func TestController_BootPlaysChime(t *testing.T) {
	r := newTestRig(t)
	r.ctrl.Boot(context.Background())

	if got := r.audio.Plays(); !slices.Equal(got, []string{"power"}) {
		t.Fatalf("expected boot chime, got %v", got)
	}
	if !slices.Equal(r.enable.levels, []bool{true}) {
		t.Fatalf("expected output enabled at boot, got %v", r.enable.levels)
	}
	if m := r.ctrl.Snapshot().Mode; m != ModeOff {
		t.Fatalf("expected mode off after boot, got %s", m)
	}
}

func TestController_PowerOnSequence(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	start := r.clock.Now()

	r.button.set(true)
	r.ctrl.Step(ctx, nil)

	if got := r.audio.Plays(); !slices.Equal(got, []string{"on", "idle(loop)"}) {
		t.Fatalf("expected power-on then idle loop, got %v", got)
	}
	if got := r.light.Colors(); !slices.Equal(got, []RGB{red}) {
		t.Fatalf("expected light set to wheel color, got %v", got)
	}
	if got := r.status.Colors(); !slices.Equal(got, []RGB{red}) {
		t.Fatalf("expected status pixel set to wheel color, got %v", got)
	}
	if waited := r.clock.Now().Sub(start); waited != 1500*time.Millisecond {
		t.Fatalf("expected the loop to block for 1.5s, blocked %v", waited)
	}
	if m := r.ctrl.Snapshot().Mode; m != ModeIdle {
		t.Fatalf("expected mode idle, got %s", m)
	}
}

func TestController_LongPressTiming(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	r.powerOn(t, ctx)

	r.button.set(true)
	pressedAt := r.clock.Now()
	var offAt time.Time
	for i := 0; i < 20; i++ {
		now := r.clock.Now()
		r.tick(ctx)
		if r.ctrl.Snapshot().Mode == ModeOff {
			offAt = now
			break
		}
	}

	if offAt.IsZero() {
		t.Fatalf("expected long press to power off")
	}
	if held := offAt.Sub(pressedAt); held < 2*time.Second || held > 2200*time.Millisecond {
		t.Fatalf("expected power off after ~2s, got %v", held)
	}
	if got := r.light.Last(); got != Black {
		t.Fatalf("expected light black, got %s", got)
	}
	plays := r.audio.Plays()
	if plays[len(plays)-1] != "poweroff" {
		t.Fatalf("expected poweroff clip last, got %v", plays)
	}

	// Holding on does not power back on.
	r.tick(ctx)
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeOff {
		t.Fatalf("expected to stay off while held, got %s", m)
	}
}

func TestController_SwingReturnsToIdleWhenClipEnds(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	r.powerOn(t, ctx)

	r.audio.setPlaying(true)
	r.sensor.push(Sample{X: 10, Z: 10})
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeSwing {
		t.Fatalf("expected mode swing, got %s", m)
	}
	plays := r.audio.Plays()
	if plays[len(plays)-1] != "swing1" {
		t.Fatalf("expected swing1 to play, got %v", plays)
	}

	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeSwing {
		t.Fatalf("expected to stay in swing while the clip plays, got %s", m)
	}

	r.audio.setPlaying(false)
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeIdle {
		t.Fatalf("expected mode idle once the clip ends, got %s", m)
	}
	plays = r.audio.Plays()
	if plays[len(plays)-1] != "idle(loop)" {
		t.Fatalf("expected idle loop to resume, got %v", plays)
	}
}

func TestController_HitStrobesThenSwings(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	r.powerOn(t, ctx)

	r.audio.setPlaying(true)
	r.sensor.push(Sample{X: 20})
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeHit {
		t.Fatalf("expected mode hit, got %s", m)
	}

	before := len(r.light.Colors())
	start := r.clock.Now()
	r.ctrl.Step(ctx, nil)

	strobe := r.light.Colors()[before:]
	if len(strobe) != 20 {
		t.Fatalf("expected 20 light updates during strobe, got %d", len(strobe))
	}
	for i, c := range strobe {
		want := white
		if i%2 == 1 {
			want = Black
		}
		if c != want {
			t.Fatalf("strobe step %d: expected %s, got %s", i, want, c)
		}
	}
	if d := r.clock.Now().Sub(start); d != 500*time.Millisecond {
		t.Fatalf("expected strobe to block 500ms, got %v", d)
	}
	if m := r.ctrl.Snapshot().Mode; m != ModeSwing {
		t.Fatalf("expected mode swing after strobe, got %s", m)
	}
}

func TestController_MissingClipsDoNotStopTheLoop(t *testing.T) {
	r := newTestRig(t)
	r.audio.missing = map[string]bool{"on": true, "swing1": true}
	ctx := context.Background()
	r.powerOn(t, ctx)

	r.sensor.push(Sample{X: 10, Z: 10})
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeSwing {
		t.Fatalf("expected mode swing, got %s", m)
	}

	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeIdle {
		t.Fatalf("expected missing swing clip to end the swing at once, got %s", m)
	}
}

func TestController_LightFailureIsNotFatal(t *testing.T) {
	r := newTestRig(t)
	r.light.err = errors.New("led gone")
	ctx := context.Background()
	r.powerOn(t, ctx)

	r.audio.setPlaying(true)
	r.sensor.push(Sample{X: 20})
	r.tick(ctx)
	if m := r.ctrl.Snapshot().Mode; m != ModeHit {
		t.Fatalf("expected mode hit despite light failure, got %s", m)
	}
}

func TestController_SensorUnavailableStaysIdle(t *testing.T) {
	r := newTestRig(t)
	r.sensor.err = ErrSensorUnavailable
	ctx := context.Background()
	r.powerOn(t, ctx)

	for i := 0; i < 5; i++ {
		r.tick(ctx)
	}
	if m := r.ctrl.Snapshot().Mode; m != ModeIdle {
		t.Fatalf("expected mode idle, got %s", m)
	}
}

func TestController_RemoteEventsAreMergedOnNextTick(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	events := make(chan Event, 4)

	events <- RemoteClick{}
	r.ctrl.Step(ctx, events)
	if m := r.ctrl.Snapshot().Mode; m != ModeIdle {
		t.Fatalf("expected remote click to power on, got %s", m)
	}

	events <- RemoteMotion{Sample: Sample{X: 21}}
	r.audio.setPlaying(true)
	r.ctrl.Step(ctx, events)
	if m := r.ctrl.Snapshot().Mode; m != ModeHit {
		t.Fatalf("expected injected hit, got %s", m)
	}

	close(events)
	if open := r.ctrl.Step(ctx, events); open {
		t.Fatalf("expected Step to report the closed channel")
	}
}

func TestController_SnapshotRequestIsAnswered(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	r.powerOn(t, ctx)

	events := make(chan Event, 1)
	reply := make(chan StateSnapshot, 1)
	events <- RequestStateSnapshot{Reply: reply}
	r.ctrl.Step(ctx, events)

	select {
	case snap := <-reply:
		if snap.Mode != ModeIdle || snap.Stats.PowerOns != 1 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	default:
		t.Fatalf("expected a snapshot reply")
	}
}

func TestController_PublishesModeChanges(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	r.powerOn(t, ctx)

	var modes []BroadcastModeChanged
	for len(r.bcast) > 0 {
		if mc, ok := (<-r.bcast).(BroadcastModeChanged); ok {
			modes = append(modes, mc)
		}
	}
	if len(modes) != 1 || modes[0].To != ModeIdle {
		t.Fatalf("expected one off->idle broadcast, got %+v", modes)
	}
}

func TestController_RunStopsOnCancel(t *testing.T) {
	r := newTestRig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ctrl.Run(ctx, nil)
	}()

	waitUntil(t, time.Second, func() bool {
		return len(r.audio.Plays()) > 0
	}, "boot chime not played")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for controller to stop")
	}
}
