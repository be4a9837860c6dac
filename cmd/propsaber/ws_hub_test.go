package main

import (
	"context"
	"testing"
	"time"
)

// Hub tests run without a network: clients have nil conns, which the hub
// tolerates when it drops them.

func newTestClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     testLogger(),
	}
}

func startHub(t *testing.T, sendBuf, broadcastBuf int) (*Hub, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	hub := NewHub(testLogger(), HubConfig{SendBuf: sendBuf, BroadcastBuf: broadcastBuf})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return hub, cancel, done
}

func registerClient(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub, cancel, done := startHub(t, 4, 8)
	defer cancel()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)

	msg := []byte(`{"type":"mode_changed","data":{"from":"off","to":"idle","cause":"button"}}`)
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for hub to stop")
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("expected all clients dropped on shutdown, got %d", n)
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub, cancel, _ := startHub(t, 1, 8)
	defer cancel()

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	slow.send <- []byte(`"stuck"`)

	msg := []byte(`{"type":"gesture","data":{"gesture":"hit","impact":400}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the stuck frame, then the channel must be closed.
	<-slow.send
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow client's send channel to be closed")

	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("expected 1 remaining client, got %d", n)
	}
}

func TestHub_UnregisterTwiceIsHarmless(t *testing.T) {
	hub, cancel, _ := startHub(t, 4, 8)
	defer cancel()

	c := newTestClient(hub, "c", 4)
	registerClient(t, hub, c)

	hub.leave(c)
	hub.leave(c)
	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == 0 }, "client not removed")
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
