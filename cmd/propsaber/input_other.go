//go:build !linux

package main

import "os"

// startInputReaders spawns one blocking reader per device where epoll is unavailable.
func startInputReaders(files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}
