package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// saber-ctl - command-line remote for the propsaber daemon
// ============================================================================
// Usage:
//   saber-ctl press | release | click
//   saber-ctl hold 2.5
//   saber-ctl swing | hit
//   saber-ctl motion 12.0 9.8 3.5
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/propsaber.sock)
// ============================================================================

const defaultSocket = "/tmp/propsaber.sock"

// Wire types, duplicated from the daemon so this binary stands alone.
type buttonData struct {
	Pressed bool `json:"pressed"`
}

type motionData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type eventEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ipcResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Impacts well inside the default swing (125..300) and hit (>300) bands.
const (
	swingImpact = 200.0
	hitImpact   = 450.0
)

func impulse(impact float64) eventEnvelope {
	return eventEnvelope{Type: "motion", Data: motionData{X: math.Sqrt(impact), Y: 9.80665}}
}

func main() {
	socketPath := defaultSocket

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fail("-socket requires an argument")
		}
		socketPath = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "press":
		send(socketPath, eventEnvelope{Type: "button", Data: buttonData{Pressed: true}})

	case "release":
		send(socketPath, eventEnvelope{Type: "button", Data: buttonData{Pressed: false}})

	case "click":
		send(socketPath, eventEnvelope{Type: "click"})

	case "hold":
		if len(args) < 2 {
			fail("hold requires a duration in seconds")
		}
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil || secs <= 0 {
			fail("invalid hold duration: %s", args[1])
		}
		send(socketPath, eventEnvelope{Type: "button", Data: buttonData{Pressed: true}})
		time.Sleep(time.Duration(secs * float64(time.Second)))
		send(socketPath, eventEnvelope{Type: "button", Data: buttonData{Pressed: false}})

	case "swing":
		send(socketPath, impulse(swingImpact))

	case "hit":
		send(socketPath, impulse(hitImpact))

	case "motion":
		if len(args) < 4 {
			fail("motion requires x y z in m/s²")
		}
		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(args[1+i], 64)
			if err != nil {
				fail("invalid axis value %q: %v", args[1+i], err)
			}
			v[i] = f
		}
		send(socketPath, eventEnvelope{Type: "motion", Data: motionData{X: v[0], Y: v[1], Z: v[2]}})

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	fmt.Println("ok")
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", a...)
	os.Exit(1)
}

func send(socketPath string, env eventEnvelope) {
	if err := sendEvent(socketPath, env); err != nil {
		fail("%v", err)
	}
}

func sendEvent(socketPath string, env eventEnvelope) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}

func printUsage() {
	fmt.Println("saber-ctl - remote control for propsaber")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  saber-ctl [-socket PATH] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  press            Hold the virtual power button down")
	fmt.Println("  release          Release the virtual power button")
	fmt.Println("  click            Press the button for one tick (powers on when off)")
	fmt.Println("  hold SECONDS     Press, wait, release (hold 2.5 powers off)")
	fmt.Println("  swing            Inject a swing-sized motion sample")
	fmt.Println("  hit              Inject a hit-sized motion sample")
	fmt.Println("  motion X Y Z     Inject an accelerometer sample in m/s²")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Printf("  -socket PATH     Unix domain socket path (default: %s)\n", defaultSocket)
}
