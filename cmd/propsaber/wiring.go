package main

import (
	"fmt"
	"log/slog"
)

// hardware is the set of backends built from the config.
// Backends that fail to open degrade to their inert stand-ins with a warning:
// a prop with a dead LED should still hum.
type hardware struct {
	periph Peripherals
	light  Light
	status Light
	audio  AudioOutput

	// handlers consume evdev events from cfg.Input.Devices
	handlers []inputHandler
	closers  []func()
}

func (hw *hardware) Close() {
	for i := len(hw.closers) - 1; i >= 0; i-- {
		hw.closers[i]()
	}
}

// buildAudio opens the configured audio backend and preloads every clip.
func buildAudio(cfg *Config, clock Clock, logger *slog.Logger) (AudioOutput, func()) {
	catalog := newClipCatalog(ExpandPath(cfg.Audio.SoundsDir))

	names := []string{cfg.Audio.BootClip, cfg.Audio.PowerOnClip, cfg.Audio.IdleClip, cfg.Audio.PowerOffClip}
	names = append(names, cfg.Audio.SwingClips...)
	names = append(names, cfg.Audio.HitClips...)
	if missing := catalog.Preload(names); len(missing) > 0 {
		logger.Warn("clips missing, they will be skipped", "dir", catalog.dir, "clips", missing)
	}

	if cfg.Audio.Backend == "speaker" {
		sp, err := NewSpeakerAudio(catalog, cfg.Audio.SampleRate, logger)
		if err == nil {
			return sp, sp.Close
		}
		logger.Warn("speaker unavailable, using silent audio", "error", err)
	}
	return newSilentAudio(catalog, clock), func() {}
}

func buildSensor(cfg *Config) (MotionSensor, func(), error) {
	switch cfg.Sensor.Backend {
	case "lis3dh":
		bus, err := openI2CBus(cfg.Sensor.I2CBus)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewLIS3DHSensor(bus, uint16(cfg.Sensor.I2CAddress), cfg.Sensor.RangeG)
		if err != nil {
			bus.Close()
			return nil, nil, err
		}
		return s, func() { bus.Close() }, nil

	case "iio":
		s, err := NewIIOAccelerometer(defaultIIORoot, cfg.Sensor.IIOName)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	return noSensor{}, func() {}, nil
}

func buildWheel(cfg *Config, palette Wheel, main RGB) (ColorSource, inputHandler, error) {
	switch cfg.Wheel.Backend {
	case "iio":
		w, err := NewIIOWheel(defaultIIORoot, cfg.Wheel.IIOName, cfg.Wheel.IIOChannel, cfg.Wheel.FullScale, palette)
		if err != nil {
			return nil, nil, err
		}
		return w, nil, nil
	case "rotary":
		w := NewRotaryWheel(palette, 0)
		return w, w, nil
	}
	return fixedColor(main), nil, nil
}

func buildLights(cfg *Config) (Light, Light, error) {
	var main Light = noLight{}
	var status Light = noLight{}
	var err error

	switch cfg.Light.Backend {
	case "sysfs-multicolor":
		main, err = NewSysfsMulticolorLight(defaultLEDRoot, cfg.Light.LED)
	case "sysfs-rgb":
		main, err = NewSysfsRGBLight(defaultLEDRoot, cfg.Light.Red, cfg.Light.Green, cfg.Light.Blue)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.Light.StatusLED != "" {
		s, err := NewSysfsMulticolorLight(defaultLEDRoot, cfg.Light.StatusLED)
		if err != nil {
			return nil, nil, fmt.Errorf("status led: %w", err)
		}
		status = s
	}
	return main, status, nil
}

// buildHardware opens every configured backend.
func buildHardware(cfg *Config, clock Clock, logger *slog.Logger) *hardware {
	mainColor, _, palette, _ := cfg.resolveColors()
	hw := &hardware{}

	audio, closeAudio := buildAudio(cfg, clock, logger)
	hw.audio = audio
	hw.closers = append(hw.closers, closeAudio)

	sensor, closeSensor, err := buildSensor(cfg)
	if err != nil {
		logger.Warn("motion sensor unavailable, gestures disabled", "backend", cfg.Sensor.Backend, "error", err)
		sensor, closeSensor = noSensor{}, func() {}
	}
	hw.periph.Sensor = sensor
	hw.closers = append(hw.closers, closeSensor)

	wheel, wheelInput, err := buildWheel(cfg, palette, mainColor)
	if err != nil {
		logger.Warn("color wheel unavailable, using main color", "backend", cfg.Wheel.Backend, "error", err)
		wheel, wheelInput = fixedColor(mainColor), nil
	}
	hw.periph.Wheel = wheel
	if wheelInput != nil {
		hw.handlers = append(hw.handlers, wheelInput)
	}

	if len(cfg.Input.Devices) > 0 {
		button := NewEvdevButton(cfg.Input.PowerKey)
		hw.periph.Button = button
		hw.handlers = append(hw.handlers, button)
	}

	light, status, err := buildLights(cfg)
	if err != nil {
		logger.Warn("light unavailable", "backend", cfg.Light.Backend, "error", err)
		light, status = noLight{}, noLight{}
	}
	hw.light, hw.status = light, status

	if cfg.Light.EnablePath != "" {
		hw.periph.Enable = NewSysfsEnable(cfg.Light.EnablePath)
	}

	return hw
}

// newFeedback builds the feedback driver for the configured clip pools.
func newFeedback(cfg *Config, audio AudioOutput, light, status Light, logger *slog.Logger) *FeedbackDriver {
	return NewFeedbackDriver(FeedbackConfig{
		Audio:      audio,
		Light:      light,
		Status:     status,
		SwingClips: cfg.Audio.SwingClips,
		HitClips:   cfg.Audio.HitClips,
	}, logger)
}
