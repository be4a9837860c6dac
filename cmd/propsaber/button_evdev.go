package main

import (
	"sync"
	"sync/atomic"
)

// EvdevButton tracks the level of one key on an evdev device.
// Key repeat keeps the button pressed.
type EvdevButton struct {
	code    uint16
	pressed atomic.Bool
}

func NewEvdevButton(code int) *EvdevButton {
	return &EvdevButton{code: uint16(code)}
}

func (b *EvdevButton) handleInput(ev inputEvent) {
	if ev.Type != EV_KEY || ev.Code != b.code {
		return
	}
	switch ev.Value {
	case evValuePress, evValueRepeat:
		b.pressed.Store(true)
	case evValueRelease:
		b.pressed.Store(false)
	}
}

// IsPressed implements PowerButton.
func (b *EvdevButton) IsPressed() bool {
	return b.pressed.Load()
}

// RotaryWheel is a ColorSource driven by a detented rotary encoder.
// Each detent moves one wheel step; the position stops at both ends.
//
// Thread-safe: the input goroutine turns it, the controller loop reads it.
type RotaryWheel struct {
	palette Wheel

	mu  sync.Mutex
	pos int
}

func NewRotaryWheel(palette Wheel, start int) *RotaryWheel {
	w := &RotaryWheel{palette: palette}
	w.turn(start)
	return w
}

func (w *RotaryWheel) handleInput(ev inputEvent) {
	if ev.Type != EV_REL {
		return
	}
	switch ev.Code {
	case REL_DIAL, REL_WHEEL, REL_MISC:
		w.turn(int(ev.Value))
	}
}

func (w *RotaryWheel) turn(steps int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = min(max(w.pos+steps, 0), wheelSteps-1)
}

// Position returns the current wheel step.
func (w *RotaryWheel) Position() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// CurrentColor implements ColorSource.
func (w *RotaryWheel) CurrentColor() RGB {
	return w.palette.At(w.Position())
}
