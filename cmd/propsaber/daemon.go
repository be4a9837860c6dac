package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Controller loop
// ============================================================================
//
// A single cooperative polling loop owns PropState:
//
//   1. drain remote events (IPC, snapshot requests) without blocking
//   2. sample the button and the wheel, reduce TickSampled
//   3. execute commands in order; CmdSampleMotion feeds MotionSampled back
//      into the reducer, CmdWait blocks the whole loop
//   4. sleep for the tick period and repeat
//
// Blocking commands (power-on delay, strobe) therefore pause button and sensor
// sampling for their duration, exactly like the physical prop.
// ============================================================================

// ControllerOptions wires a Controller.
type ControllerOptions struct {
	Config      ControllerConfig
	Tick        time.Duration
	Peripherals Peripherals
	Feedback    *FeedbackDriver
	Clock       Clock
	// MainColor is the ambient color used when no wheel is fitted.
	MainColor RGB
	// Broadcasts receives reducer broadcasts; nil disables publishing.
	Broadcasts chan<- StateBroadcast
}

// Controller runs the prop's control loop.
type Controller struct {
	cfg        ControllerConfig
	tick       time.Duration
	periph     Peripherals
	fx         *effectRunner
	clock      Clock
	broadcasts chan<- StateBroadcast
	logger     *slog.Logger

	state *PropState

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	eventQueue []Event
	cmdQueue   []Command
}

// NewController constructs a controller in mode OFF.
func NewController(opts ControllerOptions, logger *slog.Logger) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = wallClock{}
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTickMS * time.Millisecond
	}
	periph := opts.Peripherals.withDefaults(opts.MainColor)
	fb := opts.Feedback
	if fb == nil {
		fb = NewFeedbackDriver(FeedbackConfig{}, logger)
	}

	return &Controller{
		cfg:        opts.Config,
		tick:       tick,
		periph:     periph,
		fx:         &effectRunner{periph: periph, feedback: fb, clock: clock, logger: logger},
		clock:      clock,
		broadcasts: opts.Broadcasts,
		logger:     logger,
		state:      &PropState{},
	}
}

// Snapshot returns a copy of the current state. Only call it from the loop
// goroutine or after Run has returned; other goroutines use RequestStateSnapshot.
func (c *Controller) Snapshot() StateSnapshot {
	return c.state.Snapshot()
}

func (c *Controller) enqueue(ev Event) {
	c.eventQueue = append(c.eventQueue, ev)
}

// flushEvents reduces all queued events, enqueuing any resulting commands.
func (c *Controller) flushEvents() {
	for len(c.eventQueue) > 0 {
		ev := c.eventQueue[0]
		c.eventQueue = c.eventQueue[1:]

		rr := Reduce(c.state, ev, c.cfg)
		if rr.State != nil {
			c.state = rr.State
		}
		c.cmdQueue = append(c.cmdQueue, rr.Commands...)
		c.publish(rr.Broadcasts)
	}
}

// flushCommands executes queued commands in order. Observations are reduced
// immediately so follow-up commands run before anything queued after them.
func (c *Controller) flushCommands(ctx context.Context) {
	for len(c.cmdQueue) > 0 {
		cmd := c.cmdQueue[0]
		c.cmdQueue = c.cmdQueue[1:]

		c.fx.run(ctx, cmd, c.enqueue)
		c.flushEvents()
	}
}

func (c *Controller) publish(bs []StateBroadcast) {
	for _, b := range bs {
		switch ev := b.(type) {
		case BroadcastModeChanged:
			c.logger.Info("mode changed", "from", ev.From.String(), "to", ev.To.String(), "cause", ev.Cause)
		case BroadcastGesture:
			c.logger.Debug("gesture", "gesture", ev.Gesture.String(), "impact", ev.Impact)
		}

		if c.broadcasts == nil {
			continue
		}
		select {
		case c.broadcasts <- b:
		default:
			c.logger.Debug("broadcast queue full, dropping", "broadcast", b)
		}
	}
}

func (c *Controller) process(ctx context.Context, ev Event) {
	c.enqueue(ev)
	c.flushEvents()
	c.flushCommands(ctx)
}

// Boot plays the boot chime while the prop stays OFF.
func (c *Controller) Boot(ctx context.Context) {
	c.process(ctx, Booted{At: c.clock.Now()})
}

// Step runs one tick: pending remote events first, then the sampled inputs.
// It reports false once events has been closed, after which callers should pass nil.
func (c *Controller) Step(ctx context.Context, events <-chan Event) bool {
	open := true
drain:
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				open = false
				break drain
			}
			c.process(ctx, ev)
		default:
			break drain
		}
	}

	c.process(ctx, TickSampled{
		Now:     c.clock.Now(),
		Pressed: c.periph.Button.IsPressed(),
		Wheel:   c.periph.Wheel.CurrentColor(),
	})
	return open
}

// Run boots the controller and polls until ctx is canceled. The loop never
// stops on its own: every collaborator failure degrades to skipped feedback.
func (c *Controller) Run(ctx context.Context, events <-chan Event) {
	c.logger.Info("controller starting", "tick", c.tick)
	c.Boot(ctx)

	for {
		if ctx.Err() != nil {
			c.logger.Info("controller stopping (context canceled)")
			return
		}
		if !c.Step(ctx, events) {
			c.logger.Debug("remote event channel closed")
			events = nil
		}
		if err := c.clock.Sleep(ctx, c.tick); err != nil {
			c.logger.Info("controller stopping (context canceled)")
			return
		}
	}
}
