package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Remote Events - IPC wire types
// ============================================================================
// Remote events arrive over the IPC socket from saber-ctl or scripts. They
// stand in for the physical button and sensor: the controller loop merges
// them with hardware samples on its next tick.
// ============================================================================

// RemoteButton holds (Pressed=true) or releases the virtual power button.
// The virtual button is ORed with the physical one.
type RemoteButton struct {
	Pressed bool `json:"pressed"`
}

func (RemoteButton) eventMarker() {}

// RemoteClick presses the virtual button for exactly one tick.
type RemoteClick struct{}

func (RemoteClick) eventMarker() {}

// RemoteMotion replaces the next powered accelerometer sample.
type RemoteMotion struct {
	Sample
}

func (RemoteMotion) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "button":
		var e RemoteButton
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal RemoteButton: %w", err)
		}
		return e, nil

	case "click":
		return RemoteClick{}, nil

	case "motion":
		var e RemoteMotion
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal RemoteMotion: %w", err)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes a remote Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case RemoteButton:
		env.Type = "button"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal RemoteButton: %w", err)
		}
		env.Data = data

	case RemoteClick:
		env.Type = "click"

	case RemoteMotion:
		env.Type = "motion"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal RemoteMotion: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
