package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
)

// ============================================================================
// Terminal simulator
// ============================================================================
// `propsaber sim` runs the real controller loop against keyboard-driven
// peripherals and draws the blade in the terminal:
//
//   space  toggle the power button (hold it down for a long press)
//   s      swing   h  hit
//   1-7    move the color wheel
//   q/Esc  quit
//
// Audio uses the speaker when one is available.
// ============================================================================

// simButton is a latching button toggled from the keyboard.
type simButton struct {
	pressed atomic.Bool
}

func (b *simButton) toggle() bool {
	for {
		old := b.pressed.Load()
		if b.pressed.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (b *simButton) IsPressed() bool { return b.pressed.Load() }

// simSensor reports rest until a gesture is injected; each injected sample
// is read exactly once.
type simSensor struct {
	mu   sync.Mutex
	next *Sample
}

func (s *simSensor) inject(smp Sample) {
	s.mu.Lock()
	s.next = &smp
	s.mu.Unlock()
}

func (s *simSensor) Read() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		return Sample{Y: standardGravity}, nil
	}
	smp := *s.next
	s.next = nil
	return smp, nil
}

// impulse returns a sample whose impact sits halfway between lo and hi.
func impulse(lo, hi float64) Sample {
	return Sample{X: math.Sqrt((lo + hi) / 2), Y: standardGravity}
}

type simWheel struct {
	palette Wheel
	idx     atomic.Int32
}

func (w *simWheel) CurrentColor() RGB { return w.palette.At(int(w.idx.Load())) }

// simLight records the color and asks the UI to redraw.
type simLight struct {
	screen tcell.Screen
	mu     sync.Mutex
	color  RGB
}

func (l *simLight) SetColor(c RGB) error {
	l.mu.Lock()
	l.color = c
	l.mu.Unlock()
	_ = l.screen.PostEvent(tcell.NewEventInterrupt(nil))
	return nil
}

func (l *simLight) get() RGB {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

// simView is what the UI shows besides the lights; fed by controller broadcasts.
type simView struct {
	mu          sync.Mutex
	mode        Mode
	lastGesture string
}

func runSimSubcommand(args []string) {
	if err := simMain(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// simMain parses the sim flags and runs the simulator. Deferred cleanup
// (log file, screen) runs before the caller exits.
func simMain(args []string) error {
	f := newCLIFlags("propsaber sim")
	logFile := f.fs.String("log-file", "", "Write logs to this file (the terminal is used for drawing)")
	_ = f.fs.Parse(args)

	if *f.showHelp {
		printUsage()
		return nil
	}

	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if *logFile != "" {
		lf, err := os.OpenFile(ExpandPath(*logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer lf.Close()
		logOut = lf
	}
	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(level, logOut)

	return runSim(context.Background(), &cfg, logger)
}

func runSim(parent context.Context, cfg *Config, logger *slog.Logger) error {
	ccfg, err := cfg.ToControllerConfig()
	if err != nil {
		return err
	}
	_, _, palette, _ := cfg.resolveColors()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	clock := wallClock{}
	audio, closeAudio := buildAudio(cfg, clock, logger)
	defer closeAudio()

	button := &simButton{}
	sensor := &simSensor{}
	wheel := &simWheel{palette: palette}
	blade := &simLight{screen: screen}
	status := &simLight{screen: screen}
	view := &simView{}

	events := make(chan Event, 16)
	broadcasts := make(chan StateBroadcast, 64)

	ctrl := NewController(ControllerOptions{
		Config: ccfg,
		Tick:   cfg.TickInterval(),
		Peripherals: Peripherals{
			Sensor: sensor,
			Button: button,
			Wheel:  wheel,
		},
		Feedback:   newFeedback(cfg, audio, blade, status, logger),
		Clock:      clock,
		Broadcasts: broadcasts,
	}, logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		ctrl.Run(ctx, events)
	}()
	go func() {
		defer wg.Done()
		if err := runIPCServer(ctx, cfg.IPC.SocketPath, events, logger); err != nil {
			logger.Warn("sim IPC disabled", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-broadcasts:
				view.mu.Lock()
				switch ev := b.(type) {
				case BroadcastModeChanged:
					view.mode = ev.To
				case BroadcastGesture:
					view.lastGesture = fmt.Sprintf("%s (%.0f)", ev.Gesture, ev.Impact)
				}
				view.mu.Unlock()
				_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	th := ccfg.Thresholds
	draw := func() { drawSim(screen, blade.get(), status.get(), button.IsPressed(), int(wheel.idx.Load()), view) }
	draw()

	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			cancel()
			wg.Wait()
			return nil

		case *tcell.EventResize:
			screen.Sync()
			draw()

		case *tcell.EventInterrupt:
			draw()

		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q'):
				cancel()
				wg.Wait()
				return nil

			case ev.Key() == tcell.KeyRune:
				switch r := ev.Rune(); {
				case r == ' ':
					logger.Debug("sim button", "pressed", button.toggle())
				case r == 's':
					sensor.inject(impulse(th.Swing, th.Hit))
				case r == 'h':
					sensor.inject(impulse(th.Hit, 2*th.Hit))
				case r >= '1' && r <= '7':
					wheel.idx.Store(int32(r - '1'))
				}
			}
			draw()
		}
	}
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func rgbColor(c RGB) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func drawSim(s tcell.Screen, blade, status RGB, pressed bool, wheelIdx int, view *simView) {
	s.Clear()
	w, _ := s.Size()

	view.mu.Lock()
	mode, gesture := view.mode, view.lastGesture
	view.mu.Unlock()

	plain := tcell.StyleDefault
	bold := plain.Bold(true)

	drawText(s, 2, 1, bold, "propsaber simulator")

	hiltStyle := plain.Background(tcell.NewRGBColor(90, 90, 90))
	bladeStyle := plain.Background(rgbColor(blade))
	bladeLen := max(w-16, 10)
	for y := 3; y <= 5; y++ {
		for x := 2; x < 10; x++ {
			s.SetContent(x, y, ' ', nil, hiltStyle)
		}
		for x := 10; x < 10+bladeLen; x++ {
			s.SetContent(x, y, ' ', nil, bladeStyle)
		}
	}
	s.SetContent(5, 4, ' ', nil, plain.Background(rgbColor(status)))

	btn := "released"
	if pressed {
		btn = "PRESSED"
	}
	drawText(s, 2, 7, plain, fmt.Sprintf("mode:    %s", mode))
	drawText(s, 2, 8, plain, fmt.Sprintf("button:  %s", btn))
	drawText(s, 2, 9, plain, fmt.Sprintf("wheel:   %d  %s", wheelIdx+1, status))
	drawText(s, 2, 10, plain, fmt.Sprintf("light:   %s", blade))
	drawText(s, 2, 11, plain, fmt.Sprintf("gesture: %s", gesture))

	drawText(s, 2, 13, plain.Dim(true), "space: button  s: swing  h: hit  1-7: wheel  q: quit")
	s.Show()
}
