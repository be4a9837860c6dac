package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// readInputEvents reads input events from r and sends them to a channel.
// This runs in a dedicated goroutine and blocks on read operations.
func readInputEvents(r io.Reader, events chan<- inputEvent, readErr chan<- error) {
	buf := make([]byte, inputEventSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		events <- ev
	}
}

// inputHandler consumes decoded input events. Handlers are called from the
// single dispatch goroutine and must not block.
type inputHandler interface {
	handleInput(ev inputEvent)
}

// dispatchInput fans events out to the handlers until ctx is canceled or the
// reader fails.
func dispatchInput(ctx context.Context, events <-chan inputEvent, readErr <-chan error, logger *slog.Logger, handlers ...inputHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				logger.Warn("input device closed")
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)
		case ev := <-events:
			for _, h := range handlers {
				h.handleInput(ev)
			}
		}
	}
}

// runInputDevices opens the evdev devices and dispatches their events until
// ctx is canceled. Devices are closed on return.
func runInputDevices(ctx context.Context, paths []string, logger *slog.Logger, handlers ...inputHandler) error {
	if len(paths) == 0 || len(handlers) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", p, err)
		}
		files = append(files, f)
	}

	events := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	startInputReaders(files, events, readErr)

	logger.Info("listening for input", "devices", paths)
	return dispatchInput(ctx, events, readErr, logger, handlers...)
}
