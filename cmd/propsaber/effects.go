package main

import (
	"context"
	"errors"
	"log/slog"
)

// effectRunner executes reducer-emitted Commands against the collaborators.
//
// Design rules:
//   - This is the only place that performs I/O for the controller.
//   - It never calls Reduce(); it emits observation Events through onEvent.
//   - Collaborator failures are logged and reported as CommandFailed; none are fatal.
type effectRunner struct {
	periph   Peripherals
	feedback *FeedbackDriver
	clock    Clock
	logger   *slog.Logger
}

func (fx *effectRunner) run(ctx context.Context, cmd Command, onEvent func(Event)) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	fail := func(err error) {
		onEvent(CommandFailed{Command: cmd, Err: err, At: fx.clock.Now()})
	}

	switch c := cmd.(type) {
	case CmdSetEnable:
		if err := fx.periph.Enable.SetEnabled(c.On); err != nil {
			fx.logger.Warn("set output enable failed", "on", c.On, "error", err)
			fail(err)
		}

	case CmdPlayClip:
		if err := fx.feedback.Play(c.Name, c.Loop); err != nil {
			fx.logger.Warn("play clip failed", "clip", c.Name, "error", err)
			fail(err)
		}

	case CmdPlayRandom:
		name, err := fx.feedback.PlayRandom(c.Pool)
		if err != nil {
			fx.logger.Warn("play clip failed", "pool", c.Pool.String(), "clip", name, "error", err)
			fail(err)
		}

	case CmdSetLight:
		if err := fx.feedback.SetLight(c.Color); err != nil {
			fx.logger.Warn("light update failed", "error", err)
			fail(err)
		}

	case CmdSetStatusLight:
		if err := fx.feedback.SetStatusLight(c.Color); err != nil {
			fx.logger.Warn("status light update failed", "error", err)
			fail(err)
		}

	case CmdWait:
		// Cancellation only happens on shutdown; the loop checks ctx right after.
		_ = fx.clock.Sleep(ctx, c.D)

	case CmdSampleMotion:
		sample, err := fx.periph.Sensor.Read()
		if err != nil {
			if !errors.Is(err, ErrSensorUnavailable) {
				fx.logger.Debug("sensor read failed, using zero sample", "error", err)
			}
			sample = Sample{}
		}
		onEvent(MotionSampled{
			Sample:       sample,
			AudioPlaying: fx.feedback.IsPlaying(),
			Err:          err,
			At:           fx.clock.Now(),
		})

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			fx.logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the controller on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			fx.logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		fx.logger.Warn("unknown command type", "command", cmd.String())
		fail(errUnknownCommand{cmd: cmd})
	}
}

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
