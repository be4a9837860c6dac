package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultIIORoot = "/sys/bus/iio/devices"

// findIIODevice returns the sysfs directory of the IIO device whose "name"
// attribute equals name.
func findIIODevice(root, name string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", err
	}
	for _, dir := range matches {
		b, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(b)) == name {
			return dir, nil
		}
	}
	return "", fmt.Errorf("iio device %q not found under %s", name, root)
}

func readSysfsFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// IIOAccelerometer reads an accelerometer bound to a kernel IIO driver.
// The kernel scale converts raw counts to m/s².
type IIOAccelerometer struct {
	dir   string
	scale [3]float64
}

// NewIIOAccelerometer looks up the device by name and caches the axis scales.
func NewIIOAccelerometer(root, name string) (*IIOAccelerometer, error) {
	dir, err := findIIODevice(root, name)
	if err != nil {
		return nil, err
	}

	a := &IIOAccelerometer{dir: dir}
	shared, sharedErr := readSysfsFloat(filepath.Join(dir, "in_accel_scale"))
	for i, axis := range []string{"x", "y", "z"} {
		if sharedErr == nil {
			a.scale[i] = shared
			continue
		}
		s, err := readSysfsFloat(filepath.Join(dir, "in_accel_"+axis+"_scale"))
		if err != nil {
			return nil, fmt.Errorf("iio accel scale: %w", errors.Join(sharedErr, err))
		}
		a.scale[i] = s
	}
	return a, nil
}

// Read implements MotionSensor.
func (a *IIOAccelerometer) Read() (Sample, error) {
	var v [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		raw, err := readSysfsFloat(filepath.Join(a.dir, "in_accel_"+axis+"_raw"))
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
		}
		v[i] = raw * a.scale[i]
	}
	return Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}

// IIOWheel maps an ADC channel (a potentiometer) onto the color wheel.
// A failed read keeps the last color.
type IIOWheel struct {
	path      string
	fullScale int
	palette   Wheel
	last      RGB
}

func NewIIOWheel(root, name, channel string, fullScale int, palette Wheel) (*IIOWheel, error) {
	dir, err := findIIODevice(root, name)
	if err != nil {
		return nil, err
	}
	w := &IIOWheel{
		path:      filepath.Join(dir, "in_"+channel+"_raw"),
		fullScale: fullScale,
		palette:   palette,
		last:      palette.At(0),
	}
	if _, err := readSysfsFloat(w.path); err != nil {
		return nil, fmt.Errorf("iio wheel channel: %w", err)
	}
	return w, nil
}

// CurrentColor implements ColorSource.
func (w *IIOWheel) CurrentColor() RGB {
	v, err := readSysfsFloat(w.path)
	if err != nil {
		return w.last
	}
	w.last = w.palette.At(WheelIndex(int(v), w.fullScale))
	return w.last
}
