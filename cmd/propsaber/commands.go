package main

import (
	"fmt"
	"time"
)

// Command represents a side effect requested by the reducer and executed by
// the effects layer: audio, light, output enable, sensor sampling and timed waits.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetEnable switches the amplifier/LED output-enable line.
type CmdSetEnable struct {
	On bool
}

func (CmdSetEnable) commandMarker()   {}
func (c CmdSetEnable) String() string { return fmt.Sprintf("CmdSetEnable(on=%v)", c.On) }

// CmdPlayClip plays a named clip, superseding whatever is playing.
type CmdPlayClip struct {
	Name string
	Loop bool
}

func (CmdPlayClip) commandMarker() {}
func (c CmdPlayClip) String() string {
	return fmt.Sprintf("CmdPlayClip(name=%q, loop=%v)", c.Name, c.Loop)
}

// CmdPlayRandom plays a uniformly chosen clip from a pool.
type CmdPlayRandom struct {
	Pool ClipPool
}

func (CmdPlayRandom) commandMarker()   {}
func (c CmdPlayRandom) String() string { return fmt.Sprintf("CmdPlayRandom(pool=%s)", c.Pool) }

// CmdSetLight sets the main RGB light.
type CmdSetLight struct {
	Color RGB
}

func (CmdSetLight) commandMarker()   {}
func (c CmdSetLight) String() string { return fmt.Sprintf("CmdSetLight(color=%s)", c.Color) }

// CmdSetStatusLight sets the status pixel, which mirrors the wheel color.
type CmdSetStatusLight struct {
	Color RGB
}

func (CmdSetStatusLight) commandMarker() {}
func (c CmdSetStatusLight) String() string {
	return fmt.Sprintf("CmdSetStatusLight(color=%s)", c.Color)
}

// CmdWait blocks the controller loop. Nothing is sampled while it runs.
type CmdWait struct {
	D      time.Duration
	Reason string
}

func (CmdWait) commandMarker() {}
func (c CmdWait) String() string {
	return fmt.Sprintf("CmdWait(d=%s, reason=%s)", c.D, c.Reason)
}

// CmdSampleMotion reads the accelerometer and polls the audio output.
// The result comes back as a MotionSampled event.
type CmdSampleMotion struct{}

func (CmdSampleMotion) commandMarker() {}
func (CmdSampleMotion) String() string { return "CmdSampleMotion()" }

// CmdPublishStateSnapshot delivers a snapshot to a requester (WS server).
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
