package main

import "fmt"

// Mode is the coarse behavioral state of the prop.
type Mode int

const (
	ModeOff Mode = iota
	ModeIdle
	ModeSwing
	ModeHit
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeIdle:
		return "idle"
	case ModeSwing:
		return "swing"
	case ModeHit:
		return "hit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Powered reports whether the mode is one of the powered modes.
func (m Mode) Powered() bool { return m != ModeOff }

// MarshalText encodes the mode by name for JSON payloads.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "off":
		*m = ModeOff
	case "idle":
		*m = ModeIdle
	case "swing":
		*m = ModeSwing
	case "hit":
		*m = ModeHit
	default:
		return fmt.Errorf("unknown mode %q", string(b))
	}
	return nil
}
