package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: telemetry for dashboards and ws_listen
// ============================================================================
//
// Frames are JSON text messages shaped {type, ts, data}:
//   - state_init    first frame on connect, a snapshot taken by the controller loop
//   - mode_changed  {from, to, cause}
//   - gesture       {gesture, impact}
//   - light_changed {color}, coalesced latest-wins every 50ms
//   - wheel_changed {color}, coalesced latest-wins every 50ms
//
// The strobe toggles the light twenty times in half a second; coalescing
// keeps that from flooding clients while still ending on the final color.
// ============================================================================

type wsSnapshotData struct {
	Mode       Mode      `json:"mode"`
	ModeSince  time.Time `json:"mode_since"`
	Light      string    `json:"light"`
	Wheel      string    `json:"wheel"`
	LastImpact float64   `json:"last_impact"`
	Stats      PropStats `json:"stats"`
}

type wsModeChangedData struct {
	From  Mode   `json:"from"`
	To    Mode   `json:"to"`
	Cause string `json:"cause"`
}

type wsGestureData struct {
	Gesture Gesture `json:"gesture"`
	Impact  float64 `json:"impact"`
}

type wsColorData struct {
	Color string `json:"color"`
}

// wsOutboundEvent is a broadcast converted to its wire type and payload.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

// envelope is the wire format of every frame.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalFrame(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At.UTC()
	if ev.At.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

func snapshotFrame(snap StateSnapshot) wsOutboundEvent {
	return wsOutboundEvent{
		Type: "state_init",
		Data: wsSnapshotData{
			Mode:       snap.Mode,
			ModeSince:  snap.ModeSince,
			Light:      snap.Light.String(),
			Wheel:      snap.Wheel.String(),
			LastImpact: snap.LastImpact,
			Stats:      snap.Stats,
		},
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

// wsSnapshotTimeout bounds the wait for the controller loop, which may be
// inside the 1.5s power-on delay when the client connects.
const wsSnapshotTimeout = 3 * time.Second

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// Snapshots are requested through the controller's event channel.
	events chan<- Event
}

func NewServer(logger *slog.Logger, events chan<- Event, cfg HubConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register mounts the state socket on mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// The pumps outlive this handler; net/http cancels r.Context() when it returns.
	go client.writePump()
	go client.readPump()

	ctx, cancel := context.WithTimeout(r.Context(), wsSnapshotTimeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case s.events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		s.logger.Warn("ws snapshot request not queued", "error", ctx.Err())
		return
	}

	select {
	case snap := <-reply:
		msg, err := marshalFrame(snapshotFrame(snap))
		if err != nil {
			s.logger.Warn("ws snapshot marshal failed", "error", err)
			return
		}
		// The client was just registered, so a full queue means it is already stuck.
		select {
		case client.send <- msg:
		default:
			s.hub.leave(client)
		}
	case <-ctx.Done():
		s.logger.Warn("ws snapshot request timed out", "error", ctx.Err())
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

const wsCoalesceWindow = 50 * time.Millisecond

func coalesced(typ string) bool {
	return typ == "light_changed" || typ == "wheel_changed"
}

// RunBroadcaster converts controller broadcasts into frames for the hub.
// Coalesced types keep only their latest value and are flushed on a fixed
// 50ms cadence while updates keep arriving. Any other frame flushes them
// first so clients observe events in order.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	pending := make(map[string]wsOutboundEvent)
	var order []string

	var timer *time.Timer
	var timerC <-chan time.Time

	send := func(ev wsOutboundEvent) {
		msg, err := marshalFrame(ev)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "type", ev.Type, "error", err)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flush := func() {
		for _, typ := range order {
			send(pending[typ])
			delete(pending, typ)
		}
		order = order[:0]
	}

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		timerC = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			stopTimer()
			return

		case <-timerC:
			flush()
			stopTimer()

		case b, ok := <-src:
			if !ok {
				flush()
				stopTimer()
				logger.Debug("ws broadcaster stopping (source closed)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if coalesced(ev.Type) {
				if _, seen := pending[ev.Type]; !seen {
					order = append(order, ev.Type)
				}
				pending[ev.Type] = ev
				if timer == nil {
					timer = time.NewTimer(wsCoalesceWindow)
					timerC = timer.C
				}
				continue
			}

			flush()
			stopTimer()
			send(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastModeChanged:
		return wsOutboundEvent{
			Type: "mode_changed",
			Data: wsModeChangedData{From: ev.From, To: ev.To, Cause: ev.Cause},
			At:   ev.At,
		}, true

	case BroadcastGesture:
		return wsOutboundEvent{
			Type: "gesture",
			Data: wsGestureData{Gesture: ev.Gesture, Impact: ev.Impact},
			At:   ev.At,
		}, true

	case BroadcastLightChanged:
		return wsOutboundEvent{
			Type: "light_changed",
			Data: wsColorData{Color: ev.Color.String()},
			At:   ev.At,
		}, true

	case BroadcastWheelChanged:
		return wsOutboundEvent{
			Type: "wheel_changed",
			Data: wsColorData{Color: ev.Color.String()},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
