package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("propsaber v%s\n", version)
	fmt.Println("Motion-reactive light and sound controller for a prop saber")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  propsaber [OPTIONS]")
	fmt.Println("  propsaber sim [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Polls the power button and the accelerometer every tick and drives the")
	fmt.Println("  blade light and the speaker: a long press powers the prop on or off,")
	fmt.Println("  swings and hits play clips, and a hit strobes the blade.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (defaults are used when omitted)")
	fmt.Println()
	fmt.Println("  -sounds-dir string")
	fmt.Println("        Directory holding the WAV clips (overrides audio.sounds_dir)")
	fmt.Println()
	fmt.Println("  -audio string")
	fmt.Println("        Audio backend: speaker|silent (overrides audio.backend)")
	fmt.Println()
	fmt.Println("  -sensor string")
	fmt.Println("        Accelerometer backend: lis3dh|iio|none (overrides sensor.backend)")
	fmt.Println()
	fmt.Println("  -i2c-bus string")
	fmt.Println("        I2C bus device for the lis3dh backend (overrides sensor.i2c_bus)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Evdev device carrying the power button (overrides input.devices)")
	fmt.Println()
	fmt.Println("  -wheel string")
	fmt.Println("        Color wheel backend: iio|rotary|none (overrides wheel.backend)")
	fmt.Println()
	fmt.Println("  -light string")
	fmt.Println("        Light backend: sysfs-multicolor|sysfs-rgb|none (overrides light.backend)")
	fmt.Println()
	fmt.Println("  -hit-threshold float")
	fmt.Printf("        Impact above which a hit is detected (default %.0f)\n", defaultHitThreshold)
	fmt.Println()
	fmt.Println("  -swing-threshold float")
	fmt.Printf("        Impact above which a swing is detected (default %.0f)\n", defaultSwingThreshold)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        Port for /healthz and the state WebSocket, 0 disables (default %d)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("SUBCOMMANDS:")
	fmt.Println("  sim")
	fmt.Println("        Run the controller in a terminal simulator (keyboard button and motion)")
	fmt.Println("        Options: the options above plus -log-file")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run on the prop with a config file")
	fmt.Println("  propsaber -config /etc/propsaber.yaml")
	fmt.Println()
	fmt.Println("  # Try the clips on a laptop")
	fmt.Println("  propsaber sim -sounds-dir ./sounds")
	fmt.Println()
	fmt.Println("  # Drive a running daemon from a shell")
	fmt.Println("  saber-ctl click; saber-ctl swing")
	fmt.Println()
}

// cliFlags holds the flags shared by the daemon and the simulator.
type cliFlags struct {
	fs *flag.FlagSet

	configPath  *string
	showVersion *bool
	showHelp    *bool

	soundsDir      *string
	audioBackend   *string
	sensorBackend  *string
	i2cBus         *string
	inputDevice    *string
	wheelBackend   *string
	lightBackend   *string
	hitThreshold   *float64
	swingThreshold *float64
	ipcSocket      *string
	httpPort       *int
	logLevel       *string
}

func newCLIFlags(name string) *cliFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = printUsage
	return &cliFlags{
		fs:          fs,
		configPath:  fs.String("config", "", "Path to YAML config file"),
		showVersion: fs.Bool("version", false, "Print version and exit"),
		showHelp:    fs.Bool("help", false, "Print help message"),

		soundsDir:      fs.String("sounds-dir", "", "Directory holding the WAV clips"),
		audioBackend:   fs.String("audio", "", "Audio backend: speaker|silent"),
		sensorBackend:  fs.String("sensor", "", "Accelerometer backend: lis3dh|iio|none"),
		i2cBus:         fs.String("i2c-bus", "", "I2C bus device"),
		inputDevice:    fs.String("input-device", "", "Evdev device carrying the power button"),
		wheelBackend:   fs.String("wheel", "", "Color wheel backend: iio|rotary|none"),
		lightBackend:   fs.String("light", "", "Light backend: sysfs-multicolor|sysfs-rgb|none"),
		hitThreshold:   fs.Float64("hit-threshold", defaultHitThreshold, "Hit impact threshold"),
		swingThreshold: fs.Float64("swing-threshold", defaultSwingThreshold, "Swing impact threshold"),
		ipcSocket:      fs.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC"),
		httpPort:       fs.Int("http-port", defaultHTTPPort, "HTTP port, 0 disables"),
		logLevel:       fs.String("log-level", "info", "Log level: error, warn, info, debug"),
	}
}

// overrides returns only the flags that were set explicitly, so they win
// over the config file while defaults do not.
func (f *cliFlags) overrides() FlagOverrides {
	var o FlagOverrides
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "sounds-dir":
			o.SoundsDir = f.soundsDir
		case "audio":
			o.AudioBackend = f.audioBackend
		case "sensor":
			o.SensorBackend = f.sensorBackend
		case "i2c-bus":
			o.I2CBus = f.i2cBus
		case "input-device":
			o.InputDevice = f.inputDevice
		case "wheel":
			o.WheelBackend = f.wheelBackend
		case "light":
			o.LightBackend = f.lightBackend
		case "hit-threshold":
			o.HitThreshold = f.hitThreshold
		case "swing-threshold":
			o.SwingThreshold = f.swingThreshold
		case "ipc-socket":
			o.IPCSocketPath = f.ipcSocket
		case "http-port":
			o.HTTPPort = f.httpPort
		case "log-level":
			o.LogLevel = f.logLevel
		}
	})
	return o
}

// loadConfig resolves defaults, then the config file, then explicit flags.
func (f *cliFlags) loadConfig() (Config, error) {
	cfg := DefaultConfig()
	if *f.configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(*f.configPath); err != nil {
			return Config{}, err
		}
	}
	f.overrides().Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "sim" {
		runSimSubcommand(os.Args[2:])
		return
	}

	f := newCLIFlags("propsaber")
	_ = f.fs.Parse(os.Args[1:])

	if *f.showHelp {
		printUsage()
		return
	}
	if *f.showVersion {
		printVersion()
		return
	}

	cfg, err := f.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runDaemon(ctx, &cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

// runDaemon wires the hardware to the controller and serves IPC and
// telemetry until ctx is canceled.
func runDaemon(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	ccfg, err := cfg.ToControllerConfig()
	if err != nil {
		return err
	}
	mainColor, _, _, _ := cfg.resolveColors()

	clock := wallClock{}
	hw := buildHardware(cfg, clock, logger)
	defer hw.Close()

	events := make(chan Event, 64)

	var broadcasts chan StateBroadcast
	if cfg.HTTP.Port > 0 {
		broadcasts = make(chan StateBroadcast, 256)
	}

	ctrl := NewController(ControllerOptions{
		Config:      ccfg,
		Tick:        cfg.TickInterval(),
		Peripherals: hw.periph,
		Feedback:    newFeedback(cfg, hw.audio, hw.light, hw.status, logger),
		Clock:       clock,
		MainColor:   mainColor,
		Broadcasts:  broadcasts,
	}, logger)

	logger.Info("starting propsaber",
		"version", version,
		"sensor", cfg.Sensor.Backend,
		"wheel", cfg.Wheel.Backend,
		"light", cfg.Light.Backend,
		"audio", cfg.Audio.Backend,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.Error(name+" stopped", "error", err)
			}
		}()
	}

	goRun("controller", func() error {
		ctrl.Run(ctx, events)
		return nil
	})

	goRun("ipc server", func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger)
	})

	if len(hw.handlers) > 0 {
		goRun("input", func() error {
			return runInputDevices(ctx, cfg.Input.Devices, logger, hw.handlers...)
		})
	}

	if cfg.HTTP.Port > 0 {
		srv := NewServer(logger, events, HubConfig{})
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", handleHealthz)
		srv.Register(mux, cfg.HTTP.StatePath)

		goRun("ws hub", func() error {
			srv.Hub().Run(ctx)
			return nil
		})
		goRun("ws broadcaster", func() error {
			RunBroadcaster(ctx, srv.Hub(), broadcasts, logger)
			return nil
		})
		goRun("http server", func() error {
			return runHTTPServer(ctx, cfg.HTTP.Port, mux, logger)
		})
	}

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}
