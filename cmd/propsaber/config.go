package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the propsaber daemon.
//
// Defaults reproduce the reference prop: 200ms tick, hit/swing thresholds of
// 300/125 (m/s²)², a 2s long press and a 1.5s power-on chime.
type Config struct {
	// Control loop tuning
	Controller ControllerFileConfig `yaml:"controller"`

	// Light colors and the ambient color wheel
	Colors ColorsConfig `yaml:"colors"`

	// Audio backend and clip catalog
	Audio AudioConfig `yaml:"audio"`

	// Accelerometer backend
	Sensor SensorConfig `yaml:"sensor"`

	// Evdev input devices (power button, rotary wheel)
	Input InputConfig `yaml:"input"`

	// Ambient color source backend
	Wheel WheelConfig `yaml:"wheel"`

	// Light and output-enable backends
	Light LightConfig `yaml:"light"`

	// IPC configuration (saber-ctl remote control)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP server (health + state WebSocket)
	HTTP HTTPConfig `yaml:"http"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ControllerFileConfig struct {
	TickMS           int     `yaml:"tick_ms"`
	HitThreshold     float64 `yaml:"hit_threshold"`
	SwingThreshold   float64 `yaml:"swing_threshold"`
	LongPressMS      int     `yaml:"long_press_ms"`
	PowerOnDelayMS   int     `yaml:"power_on_delay_ms"`
	StrobeCycles     int     `yaml:"strobe_cycles"`
	StrobeIntervalMS int     `yaml:"strobe_interval_ms"`
}

type ColorsConfig struct {
	Main  string   `yaml:"main"`
	Hit   string   `yaml:"hit"`
	Wheel []string `yaml:"wheel"`
}

type AudioConfig struct {
	Backend    string `yaml:"backend"` // "speaker" or "silent"
	SoundsDir  string `yaml:"sounds_dir"`
	SampleRate int    `yaml:"sample_rate"`

	BootClip     string   `yaml:"boot_clip"` // empty disables the boot chime
	PowerOnClip  string   `yaml:"power_on_clip"`
	IdleClip     string   `yaml:"idle_clip"`
	PowerOffClip string   `yaml:"power_off_clip"`
	SwingClips   []string `yaml:"swing_clips"`
	HitClips     []string `yaml:"hit_clips"`
}

type SensorConfig struct {
	Backend    string `yaml:"backend"` // "lis3dh", "iio" or "none"
	I2CBus     string `yaml:"i2c_bus"`
	I2CAddress int    `yaml:"i2c_address"`
	RangeG     int    `yaml:"range_g"`
	IIOName    string `yaml:"iio_name"`
}

type InputConfig struct {
	Devices  []string `yaml:"devices"`
	PowerKey int      `yaml:"power_key"`
}

type WheelConfig struct {
	Backend    string `yaml:"backend"` // "iio", "rotary" or "none"
	IIOName    string `yaml:"iio_name"`
	IIOChannel string `yaml:"iio_channel"`
	FullScale  int    `yaml:"full_scale"`
}

type LightConfig struct {
	Backend    string `yaml:"backend"` // "sysfs-multicolor", "sysfs-rgb" or "none"
	LED        string `yaml:"led,omitempty"`
	Red        string `yaml:"red,omitempty"`
	Green      string `yaml:"green,omitempty"`
	Blue       string `yaml:"blue,omitempty"`
	StatusLED  string `yaml:"status_led,omitempty"`
	EnablePath string `yaml:"enable_path,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port      int    `yaml:"port"` // 0 disables the server
	StatePath string `yaml:"state_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	wheel := make([]string, 0, wheelSteps)
	for _, c := range defaultWheel {
		wheel = append(wheel, c.String())
	}

	return Config{
		Controller: ControllerFileConfig{
			TickMS:           defaultTickMS,
			HitThreshold:     defaultHitThreshold,
			SwingThreshold:   defaultSwingThreshold,
			LongPressMS:      defaultLongPressMS,
			PowerOnDelayMS:   defaultPowerOnDelayMS,
			StrobeCycles:     defaultStrobeCycles,
			StrobeIntervalMS: defaultStrobeIntervalMS,
		},
		Colors: ColorsConfig{
			Main:  defaultMainColor.String(),
			Hit:   defaultHitColor.String(),
			Wheel: wheel,
		},
		Audio: AudioConfig{
			Backend:      "speaker",
			SoundsDir:    defaultSoundsDir,
			SampleRate:   defaultSampleRate,
			BootClip:     defaultBootClip,
			PowerOnClip:  defaultPowerOnClip,
			IdleClip:     defaultIdleClip,
			PowerOffClip: defaultPowerOffClip,
			SwingClips:   numberedClips("swing", 7),
			HitClips:     numberedClips("hit", 7),
		},
		Sensor: SensorConfig{
			Backend:    "lis3dh",
			I2CBus:     defaultI2CBus,
			I2CAddress: defaultI2CAddress,
			RangeG:     defaultRangeG,
			IIOName:    defaultIIOAccel,
		},
		Input: InputConfig{
			Devices:  []string{"/dev/input/event0"},
			PowerKey: KEY_POWER,
		},
		Wheel: WheelConfig{
			Backend:    "iio",
			IIOName:    defaultIIOWheel,
			IIOChannel: "voltage0",
			FullScale:  65535,
		},
		Light: LightConfig{
			Backend: "sysfs-rgb",
			Red:     "saber:red",
			Green:   "saber:green",
			Blue:    "saber:blue",
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Port:      defaultHTTPPort,
			StatePath: defaultStatePath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func numberedClips(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var trailing yaml.Node
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies command-line overrides on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	SoundsDir    *string
	AudioBackend *string

	SensorBackend *string
	I2CBus        *string

	InputDevice  *string
	WheelBackend *string
	LightBackend *string

	HitThreshold   *float64
	SwingThreshold *float64

	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a "zero value").
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.SoundsDir != nil {
		cfg.Audio.SoundsDir = *o.SoundsDir
	}
	if o.AudioBackend != nil {
		cfg.Audio.Backend = *o.AudioBackend
	}
	if o.SensorBackend != nil {
		cfg.Sensor.Backend = *o.SensorBackend
	}
	if o.I2CBus != nil {
		cfg.Sensor.I2CBus = *o.I2CBus
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.WheelBackend != nil {
		cfg.Wheel.Backend = *o.WheelBackend
	}
	if o.LightBackend != nil {
		cfg.Light.Backend = *o.LightBackend
	}
	if o.HitThreshold != nil {
		cfg.Controller.HitThreshold = *o.HitThreshold
	}
	if o.SwingThreshold != nil {
		cfg.Controller.SwingThreshold = *o.SwingThreshold
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Controller
	cc := c.Controller
	if cc.TickMS <= 0 || cc.TickMS > 10000 {
		return errors.New("controller.tick_ms must be between 1 and 10000")
	}
	if cc.SwingThreshold < 0 {
		return errors.New("controller.swing_threshold must be >= 0")
	}
	if cc.HitThreshold <= cc.SwingThreshold {
		return errors.New("controller.hit_threshold must be > controller.swing_threshold")
	}
	if cc.LongPressMS <= 0 {
		return errors.New("controller.long_press_ms must be > 0")
	}
	if cc.PowerOnDelayMS < 0 {
		return errors.New("controller.power_on_delay_ms must be >= 0")
	}
	if cc.StrobeCycles < 0 {
		return errors.New("controller.strobe_cycles must be >= 0")
	}
	if cc.StrobeIntervalMS < 0 {
		return errors.New("controller.strobe_interval_ms must be >= 0")
	}

	// Colors
	if _, _, _, err := c.resolveColors(); err != nil {
		return err
	}

	// Audio
	switch c.Audio.Backend {
	case "speaker", "silent":
	default:
		return fmt.Errorf("audio.backend must be %q or %q", "speaker", "silent")
	}
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be > 0")
	}
	if c.Audio.IdleClip == "" {
		return errors.New("audio.idle_clip must not be empty")
	}

	// Sensor
	switch c.Sensor.Backend {
	case "lis3dh":
		if c.Sensor.I2CBus == "" {
			return errors.New("sensor.i2c_bus must not be empty for the lis3dh backend")
		}
		if c.Sensor.I2CAddress <= 0 || c.Sensor.I2CAddress > 0x7f {
			return errors.New("sensor.i2c_address must be a 7-bit address")
		}
		switch c.Sensor.RangeG {
		case 2, 4, 8, 16:
		default:
			return errors.New("sensor.range_g must be one of 2, 4, 8, 16")
		}
	case "iio":
		if c.Sensor.IIOName == "" {
			return errors.New("sensor.iio_name must not be empty for the iio backend")
		}
	case "none":
	default:
		return fmt.Errorf("sensor.backend must be one of lis3dh, iio, none (got %q)", c.Sensor.Backend)
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Wheel
	switch c.Wheel.Backend {
	case "iio":
		if c.Wheel.IIOName == "" || c.Wheel.IIOChannel == "" {
			return errors.New("wheel.iio_name and wheel.iio_channel must be set for the iio backend")
		}
		if c.Wheel.FullScale <= 0 {
			return errors.New("wheel.full_scale must be > 0")
		}
	case "rotary":
		if len(c.Input.Devices) == 0 {
			return errors.New("wheel.backend rotary requires input.devices")
		}
	case "none":
	default:
		return fmt.Errorf("wheel.backend must be one of iio, rotary, none (got %q)", c.Wheel.Backend)
	}

	// Light
	switch c.Light.Backend {
	case "sysfs-multicolor":
		if c.Light.LED == "" {
			return errors.New("light.led must be set for the sysfs-multicolor backend")
		}
	case "sysfs-rgb":
		if c.Light.Red == "" || c.Light.Green == "" || c.Light.Blue == "" {
			return errors.New("light.red, light.green and light.blue must be set for the sysfs-rgb backend")
		}
	case "none":
	default:
		return fmt.Errorf("light.backend must be one of sysfs-multicolor, sysfs-rgb, none (got %q)", c.Light.Backend)
	}

	// IPC / HTTP
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.HTTP.Port > 0 && (c.HTTP.StatePath == "" || c.HTTP.StatePath[0] != '/') {
		return errors.New("http.state_path must start with /")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// resolveColors parses the configured hex colors.
func (c *Config) resolveColors() (main, hit RGB, wheel Wheel, err error) {
	if main, err = parseHexColor(c.Colors.Main); err != nil {
		return main, hit, wheel, fmt.Errorf("colors.main: %w", err)
	}
	if hit, err = parseHexColor(c.Colors.Hit); err != nil {
		return main, hit, wheel, fmt.Errorf("colors.hit: %w", err)
	}
	if len(c.Colors.Wheel) != wheelSteps {
		return main, hit, wheel, fmt.Errorf("colors.wheel must list exactly %d colors", wheelSteps)
	}
	for i, s := range c.Colors.Wheel {
		if wheel[i], err = parseHexColor(s); err != nil {
			return main, hit, wheel, fmt.Errorf("colors.wheel[%d]: %w", i, err)
		}
	}
	return main, hit, wheel, nil
}

// ToControllerConfig converts the file config into the reducer's config.
func (c *Config) ToControllerConfig() (ControllerConfig, error) {
	_, hit, _, err := c.resolveColors()
	if err != nil {
		return ControllerConfig{}, err
	}
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return ControllerConfig{
		Thresholds: Thresholds{
			Hit:   c.Controller.HitThreshold,
			Swing: c.Controller.SwingThreshold,
		},
		LongPress:      ms(c.Controller.LongPressMS),
		PowerOnDelay:   ms(c.Controller.PowerOnDelayMS),
		StrobeCycles:   c.Controller.StrobeCycles,
		StrobeInterval: ms(c.Controller.StrobeIntervalMS),
		HitColor:       hit,
		Clips: ClipNames{
			Boot:     c.Audio.BootClip,
			PowerOn:  c.Audio.PowerOnClip,
			Idle:     c.Audio.IdleClip,
			PowerOff: c.Audio.PowerOffClip,
		},
	}, nil
}

// TickInterval is the controller's sleep between iterations.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Controller.TickMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
// This is handy for config values like audio.sounds_dir.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
