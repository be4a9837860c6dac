package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_REL = 0x02

	KEY_ENTER = 28
	KEY_SPACE = 57
	KEY_POWER = 116

	// Rotary encoder relative axis codes
	REL_DIAL  = 0x07
	REL_WHEEL = 0x08
	REL_MISC  = 0x09
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Controller defaults. Impact thresholds are squared accelerations in (m/s²)².
const (
	defaultTickMS           = 200
	defaultHitThreshold     = 300.0
	defaultSwingThreshold   = 125.0
	defaultLongPressMS      = 2000
	defaultPowerOnDelayMS   = 1500
	defaultStrobeCycles     = 10
	defaultStrobeIntervalMS = 50
)

// Audio defaults
const (
	defaultSampleRate    = 22050
	defaultResampleQual  = 4
	speakerBufferPeriod  = 100 * time.Millisecond
	defaultSoundsDir     = "sounds"
	defaultBootClip      = "power"
	defaultPowerOnClip   = "on"
	defaultIdleClip      = "idle"
	defaultPowerOffClip  = "poweroff"
	defaultClipExtension = ".wav"
)

// Sensor defaults
const (
	defaultI2CBus     = "/dev/i2c-1"
	defaultI2CAddress = 0x18
	defaultRangeG     = 4
	defaultIIOAccel   = "lis3dh"
	defaultIIOWheel   = "ads1015"
	standardGravity   = 9.80665
)

const (
	defaultIPCSocket = "/tmp/propsaber.sock"
	defaultHTTPPort  = 3002
	defaultStatePath = "/ws/state"
)
