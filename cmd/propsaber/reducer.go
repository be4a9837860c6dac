package main

import "time"

// This file implements the prop's mode state machine as a pure reducer:
//
//   - Events: inputs (tick samples, motion samples, remote inputs, command failures)
//   - Commands: side effects (audio, light, enable, waits, sensor sampling)
//   - Reduce(): computes next state + commands + broadcasts without performing I/O
//
// A tick is split in two steps so the long-press check always runs before the
// accelerometer is touched: TickSampled decides power transitions and, if the
// prop stays powered, requests CmdSampleMotion; the effects layer answers with
// MotionSampled, which drives gesture classification and the mode table.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Booted is reduced once when the controller starts.
type Booted struct {
	At time.Time
}

func (Booted) eventMarker() {}

// TickSampled carries the per-tick inputs that are read regardless of mode.
type TickSampled struct {
	Now     time.Time
	Pressed bool
	Wheel   RGB
}

func (TickSampled) eventMarker() {}

// MotionSampled is the result of CmdSampleMotion.
// Err is set when the sensor could not be read; Sample is then zero.
type MotionSampled struct {
	Sample       Sample
	AudioPlaying bool
	Err          error
	At           time.Time
}

func (MotionSampled) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// RequestStateSnapshot asks the controller loop to publish a snapshot on Reply.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ==============================
// Reducer configuration
// ==============================

// ClipNames are the singleton clips used by the power sequences.
type ClipNames struct {
	Boot     string
	PowerOn  string
	Idle     string
	PowerOff string
}

// ControllerConfig holds the reducer's immutable tuning.
type ControllerConfig struct {
	Thresholds     Thresholds
	LongPress      time.Duration
	PowerOnDelay   time.Duration
	StrobeCycles   int
	StrobeInterval time.Duration
	HitColor       RGB
	Clips          ClipNames
}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state, Commands to execute in
// order, and broadcasts for observers.
type ReduceResult struct {
	State      *PropState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// reduction accumulates the output of one Reduce call.
type reduction struct {
	s     *PropState
	at    time.Time
	cmds  []Command
	bcast []StateBroadcast
}

func (r *reduction) emit(cmds ...Command) {
	r.cmds = append(r.cmds, cmds...)
}

func (r *reduction) setLight(c RGB) {
	r.emit(CmdSetLight{Color: c})
	if r.s.Light != c {
		r.bcast = append(r.bcast, BroadcastLightChanged{Color: c, At: r.at})
	}
	r.s.Light = c
}

func (r *reduction) setEnable(on bool) {
	r.emit(CmdSetEnable{On: on})
	r.s.Enabled = on
}

func (r *reduction) setMode(to Mode, cause string) {
	from := r.s.Mode
	if from == to {
		return
	}
	r.s.Mode = to
	r.s.ModeSince = r.at
	r.bcast = append(r.bcast, BroadcastModeChanged{From: from, To: to, Cause: cause, At: r.at})
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block (blocking is requested with CmdWait)
// - Must not mutate anything outside the returned state
func Reduce(s *PropState, e Event, cfg ControllerConfig) ReduceResult {
	if s == nil {
		s = &PropState{}
	}
	r := &reduction{s: s}

	switch ev := e.(type) {
	case Booted:
		r.at = ev.At
		s.ModeSince = ev.At
		if cfg.Clips.Boot != "" {
			r.setEnable(true)
			r.emit(CmdPlayClip{Name: cfg.Clips.Boot})
		}

	case TickSampled:
		r.at = ev.Now
		reduceTick(r, ev, cfg)

	case MotionSampled:
		r.at = ev.At
		reduceMotion(r, ev, cfg)

	case RemoteButton:
		s.Remote.ButtonHeld = ev.Pressed

	case RemoteClick:
		s.Remote.ClickPending = true

	case RemoteMotion:
		smp := ev.Sample
		s.Remote.PendingMotion = &smp

	case RequestStateSnapshot:
		r.emit(CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.Snapshot()})

	case CommandFailed:
		// Feedback failures never change the mode; the effects layer already logged.
		s.Stats.Failures++

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   r.cmds,
		Broadcasts: r.bcast,
	}
}

// reduceTick runs the power controller for one tick.
func reduceTick(r *reduction, ev TickSampled, cfg ControllerConfig) {
	s := r.s

	pressed := ev.Pressed || s.Remote.ButtonHeld || s.Remote.ClickPending
	s.Remote.ClickPending = false

	if ev.Wheel != s.Wheel {
		r.bcast = append(r.bcast, BroadcastWheelChanged{Color: ev.Wheel, At: ev.Now})
	}
	s.Wheel = ev.Wheel
	if s.StatusLight != ev.Wheel {
		r.emit(CmdSetStatusLight{Color: ev.Wheel})
		s.StatusLight = ev.Wheel
	}

	if !pressed {
		s.Hold = HoldTimer{}
		s.AwaitRelease = false
	}

	if s.Mode == ModeOff {
		if pressed && !s.AwaitRelease {
			powerOn(r, cfg)
		}
		return
	}

	if pressed {
		if !s.Hold.Active {
			s.Hold = HoldTimer{Active: true, Since: ev.Now}
		}
		if s.Hold.Held(ev.Now) >= cfg.LongPress {
			powerOff(r, cfg)
			return
		}
	}

	r.emit(CmdSampleMotion{})
}

// powerOn emits the blocking power-up ritual. The mode is IDLE once the
// commands have run; the controller loop samples nothing in between.
func powerOn(r *reduction, cfg ControllerConfig) {
	s := r.s
	r.setEnable(true)
	r.emit(CmdPlayClip{Name: cfg.Clips.PowerOn})
	r.setLight(s.Wheel)
	r.emit(CmdWait{D: cfg.PowerOnDelay, Reason: "power_on"})
	r.emit(CmdPlayClip{Name: cfg.Clips.Idle, Loop: true})
	s.Hold = HoldTimer{}
	s.Stats.PowerOns++
	r.setMode(ModeIdle, "button")
}

func powerOff(r *reduction, cfg ControllerConfig) {
	s := r.s
	r.emit(CmdPlayClip{Name: cfg.Clips.PowerOff})
	r.setLight(Black)
	s.Hold = HoldTimer{}
	s.AwaitRelease = true
	s.Remote.PendingMotion = nil
	r.setMode(ModeOff, "long_press")
}

// reduceMotion classifies the sample and applies the mode table.
// HIT is checked first so an impact always interrupts a swing.
func reduceMotion(r *reduction, ev MotionSampled, cfg ControllerConfig) {
	s := r.s
	if !s.Mode.Powered() {
		return
	}

	sample := ev.Sample
	if ev.Err != nil {
		sample = Sample{}
	}
	if s.Remote.PendingMotion != nil {
		sample = *s.Remote.PendingMotion
		s.Remote.PendingMotion = nil
	}

	impact := sample.Impact()
	g := Classify(impact, s.Mode, cfg.Thresholds)
	s.LastImpact = impact
	if g != GestureNone {
		s.LastGesture = g
		r.bcast = append(r.bcast, BroadcastGesture{Gesture: g, Impact: impact, At: r.at})
	}

	switch {
	case g == GestureHit:
		r.emit(CmdPlayRandom{Pool: PoolHit})
		s.FlashColor = cfg.HitColor
		s.Stats.Hits++
		r.setMode(ModeHit, "hit")

	case g == GestureSwing:
		r.emit(CmdPlayRandom{Pool: PoolSwing})
		r.setLight(s.Wheel)
		s.Stats.Swings++
		r.setMode(ModeSwing, "swing")

	case s.Mode == ModeIdle:
		r.setLight(s.Wheel)

	case ev.AudioPlaying && s.Mode == ModeSwing:
		r.setLight(s.Wheel)

	case ev.AudioPlaying && s.Mode == ModeHit:
		strobe(r, s.FlashColor, cfg)
		r.setMode(ModeSwing, "strobe")

	default:
		// SWING or HIT with the clip finished.
		r.emit(CmdPlayClip{Name: cfg.Clips.Idle, Loop: true})
		r.setMode(ModeIdle, "clip_finished")
	}
}

// strobe alternates flash and black; each cycle lasts StrobeInterval with the
// flash on for the first half. The whole animation blocks the loop.
func strobe(r *reduction, flash RGB, cfg ControllerConfig) {
	on := cfg.StrobeInterval / 2
	off := cfg.StrobeInterval - on
	for i := 0; i < cfg.StrobeCycles; i++ {
		r.setLight(flash)
		r.emit(CmdWait{D: on, Reason: "strobe"})
		r.setLight(Black)
		r.emit(CmdWait{D: off, Reason: "strobe"})
	}
}
