//go:build !tinygo

package stream

import (
	"sync"

	"tinyscope/scope/frame"
	"tinyscope/scope/settings"
)

// Message types sent to websocket clients.
const (
	TypeFrame    = "frame"
	TypeSettings = "settings"
	TypeReply    = "reply"
)

// Message is one websocket message, in either direction.
type Message struct {
	Type     string          `json:"type"`
	Frame    *frame.Snapshot `json:"frame,omitempty"`
	Settings *SettingsView   `json:"settings,omitempty"`

	// Line carries a command from a client; Reply and Error answer it.
	Line  string `json:"line,omitempty"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// SettingsView is the JSON form of settings.Scope.
type SettingsView struct {
	Running        bool   `json:"running"`
	Mode           string `json:"mode"`
	Slope          string `json:"slope"`
	TriggerChannel int    `json:"trigger_channel"`
	TriggerLevelMV int    `json:"trigger_level_mv"`
	XScaleUS       int    `json:"xscale_us"`
	YScaleMV       int    `json:"yscale_mv"`

	// Human-readable forms of the numeric fields.
	TriggerLevel string `json:"trigger_level"`
	XDiv         string `json:"xdiv"`
	YDiv         string `json:"ydiv"`
}

// View converts s for the wire.
func View(s settings.Scope) *SettingsView {
	mode := "free"
	if s.Triggered() {
		mode = "trigger"
	}
	return &SettingsView{
		Running:        s.Running,
		Mode:           mode,
		Slope:          s.Slope.String(),
		TriggerChannel: int(s.TriggerChannel) + 1,
		TriggerLevelMV: s.TriggerMillivolts(),
		XScaleUS:       s.XScale,
		YScaleMV:       s.YScale,
		TriggerLevel:   s.TriggerVoltage().String(),
		XDiv:           s.XDivision().String(),
		YDiv:           s.YDivision().String(),
	}
}

const clientQueue = 64

type client struct {
	send chan Message
}

// Hub fans frames out to websocket clients. It implements the renderer's
// sink interface; Publish never blocks and a client whose queue is full
// misses the frame.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    *frame.Snapshot
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) Publish(snap frame.Snapshot, s settings.Scope) {
	msg := Message{Type: TypeFrame, Frame: &snap, Settings: View(s)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &snap
	h.broadcastLocked(msg)
}

// PublishSettings tells every client about a settings change.
func (h *Hub) PublishSettings(s settings.Scope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(Message{Type: TypeSettings, Settings: View(s)})
}

func (h *Hub) broadcastLocked(msg Message) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

// Last returns the most recently published frame.
func (h *Hub) Last() (frame.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return frame.Snapshot{}, false
	}
	return *h.last, true
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts messages lost to full client queues.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) register(first Message) *client {
	c := &client{send: make(chan Message, clientQueue)}
	c.send <- first
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// unregister removes c and closes its queue, which ends its write pump.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
