package main

import "errors"

var (
	// ErrClipMissing means the clip asset does not exist or cannot be decoded.
	ErrClipMissing = errors.New("clip missing")

	// ErrSensorUnavailable means no sample could be read from the motion sensor.
	ErrSensorUnavailable = errors.New("motion sensor unavailable")
)

// Collaborators consumed by the controller loop and the effects layer.
// Implementations live in the backend files (lis3dh, iio, evdev, sysfs, beep, sim).

// MotionSensor yields one accelerometer sample per call, in m/s².
type MotionSensor interface {
	Read() (Sample, error)
}

// AudioOutput plays named clips. Play returns ErrClipMissing when the clip
// cannot be found or decoded; callers treat that as a no-op.
type AudioOutput interface {
	Play(name string, loop bool) error
	IsPlaying() bool
}

// Light is an RGB light that changes color immediately.
type Light interface {
	SetColor(c RGB) error
}

// PowerButton reports the debounced button level.
type PowerButton interface {
	IsPressed() bool
}

// ColorSource is the ambient color wheel, sampled once per tick.
type ColorSource interface {
	CurrentColor() RGB
}

// OutputEnable drives the amplifier/LED enable line.
type OutputEnable interface {
	SetEnabled(on bool) error
}

// Peripherals bundles the input-side collaborators of the controller.
// Nil members are replaced by inert defaults in NewController.
type Peripherals struct {
	Sensor MotionSensor
	Button PowerButton
	Wheel  ColorSource
	Enable OutputEnable
}

type noSensor struct{}

func (noSensor) Read() (Sample, error) { return Sample{}, ErrSensorUnavailable }

type noButton struct{}

func (noButton) IsPressed() bool { return false }

type noEnable struct{}

func (noEnable) SetEnabled(bool) error { return nil }

type noLight struct{}

func (noLight) SetColor(RGB) error { return nil }

func (p Peripherals) withDefaults(main RGB) Peripherals {
	if p.Sensor == nil {
		p.Sensor = noSensor{}
	}
	if p.Button == nil {
		p.Button = noButton{}
	}
	if p.Wheel == nil {
		p.Wheel = fixedColor(main)
	}
	if p.Enable == nil {
		p.Enable = noEnable{}
	}
	return p
}
