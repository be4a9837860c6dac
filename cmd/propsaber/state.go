package main

import "time"

// PropState is the controller-owned state. Only Reduce mutates it, and only the
// controller loop calls Reduce, so nothing here needs locking.
type PropState struct {
	Mode Mode

	// Hold measures the current long-press while powered.
	Hold HoldTimer

	// AwaitRelease is set after a long-press power-off so the same, still held,
	// press cannot immediately power the prop back on.
	AwaitRelease bool

	// Enabled mirrors the last commanded output-enable level.
	Enabled bool

	// FlashColor is the active flash color remembered on entering HIT.
	FlashColor RGB

	// Wheel is the ambient color sampled on the most recent tick.
	Wheel RGB

	// Light and StatusLight are the last colors commanded to each light.
	Light       RGB
	StatusLight RGB

	// Remote holds inputs injected over IPC, merged on the next tick.
	Remote RemoteInputs

	LastImpact  float64
	LastGesture Gesture
	ModeSince   time.Time

	Stats PropStats
}

// HoldTimer measures a continuous button press.
type HoldTimer struct {
	Active bool
	Since  time.Time
}

// Held returns how long the button has been held at now.
func (h HoldTimer) Held(now time.Time) time.Duration {
	if !h.Active {
		return 0
	}
	return now.Sub(h.Since)
}

// RemoteInputs are virtual button and motion inputs from IPC clients.
type RemoteInputs struct {
	ButtonHeld    bool
	ClickPending  bool
	PendingMotion *Sample
}

// PropStats counts gestures and power cycles since the daemon started.
type PropStats struct {
	PowerOns int `json:"power_ons"`
	Swings   int `json:"swings"`
	Hits     int `json:"hits"`
	Failures int `json:"failures"`
}

// StateSnapshot is an immutable copy of PropState published to other goroutines.
type StateSnapshot struct {
	Mode       Mode
	ModeSince  time.Time
	Light      RGB
	Wheel      RGB
	LastImpact float64
	Stats      PropStats
}

// Snapshot copies the externally visible parts of the state.
func (s *PropState) Snapshot() StateSnapshot {
	return StateSnapshot{
		Mode:       s.Mode,
		ModeSince:  s.ModeSince,
		Light:      s.Light,
		Wheel:      s.Wheel,
		LastImpact: s.LastImpact,
		Stats:      s.Stats,
	}
}

// ============================================================================
// State broadcasts
// ============================================================================
// Broadcasts are emitted by Reduce alongside commands and fanned out to
// WebSocket clients by RunBroadcaster. They never feed back into the reducer.
// ============================================================================

// StateBroadcast is a state change worth telling observers about.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastModeChanged reports a mode transition and what caused it.
type BroadcastModeChanged struct {
	From  Mode
	To    Mode
	Cause string
	At    time.Time
}

func (BroadcastModeChanged) broadcastMarker() {}

// BroadcastGesture reports a classified swing or hit.
type BroadcastGesture struct {
	Gesture Gesture
	Impact  float64
	At      time.Time
}

func (BroadcastGesture) broadcastMarker() {}

// BroadcastLightChanged reports a new main light color.
type BroadcastLightChanged struct {
	Color RGB
	At    time.Time
}

func (BroadcastLightChanged) broadcastMarker() {}

// BroadcastWheelChanged reports that the ambient wheel color moved.
type BroadcastWheelChanged struct {
	Color RGB
	At    time.Time
}

func (BroadcastWheelChanged) broadcastMarker() {}
