// Package hub fans graph change events out to connected sessions. A
// session groups one or more channels (browser tabs, reconnects) under a
// caller-chosen session ID; a failed send removes only the dead channel.
package hub

import (
	"log"
	"sync"
	"time"

	"netviz/internal/domain"
	"netviz/internal/metrics"
)

// Channel is one delivery target, typically a websocket connection.
// Send must be safe for concurrent use and return an error when the
// underlying transport is gone.
type Channel interface {
	Send(v any) error
}

// Hub tracks connected sessions and broadcasts graph updates to them
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[Channel]struct{}
	mreg     *metrics.Registry
}

// New creates an empty hub
func New() *Hub {
	return &Hub{
		sessions: make(map[string]map[Channel]struct{}),
	}
}

// SetMetrics attaches an instrumentation registry. Safe to skip in tests.
func (h *Hub) SetMetrics(reg *metrics.Registry) {
	h.mreg = reg
}

// Connect registers a channel under the session and confirms the
// connection to it
func (h *Hub) Connect(sessionID string, ch Channel) {
	h.mu.Lock()
	channels, ok := h.sessions[sessionID]
	if !ok {
		channels = make(map[Channel]struct{})
		h.sessions[sessionID] = channels
	}
	channels[ch] = struct{}{}
	total := h.channelCountLocked()
	h.mu.Unlock()

	if h.mreg != nil {
		h.mreg.ConnectedClients.Set(float64(total))
	}
	log.Printf("session %s connected (channels: %d)", sessionID, total)

	// Confirmation failures are handled like any other dead channel:
	// the next broadcast or ping removes it
	_ = ch.Send(map[string]any{
		"type":       "connection_established",
		"session_id": sessionID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// Disconnect removes a channel. The session entry disappears with its
// last channel.
func (h *Hub) Disconnect(sessionID string, ch Channel) {
	h.mu.Lock()
	h.removeLocked(sessionID, ch)
	total := h.channelCountLocked()
	h.mu.Unlock()

	if h.mreg != nil {
		h.mreg.ConnectedClients.Set(float64(total))
	}
	log.Printf("session %s disconnected (channels: %d)", sessionID, total)
}

func (h *Hub) removeLocked(sessionID string, ch Channel) {
	channels, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(channels, ch)
	if len(channels) == 0 {
		delete(h.sessions, sessionID)
	}
}

// BroadcastGraphUpdate sends one committed graph change to every
// connected channel. Channels that fail to accept the event are dropped.
func (h *Hub) BroadcastGraphUpdate(updateType domain.UpdateType, entityType domain.EntityType, entity any, source string) {
	h.broadcast(map[string]any{
		"type":        "graph_update",
		"update_type": string(updateType),
		"entity_type": string(entityType),
		"entity_data": entity,
		"source":      source,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) broadcast(envelope map[string]any) {
	type target struct {
		sessionID string
		ch        Channel
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.sessions))
	for sessionID, channels := range h.sessions {
		for ch := range channels {
			targets = append(targets, target{sessionID, ch})
		}
	}
	h.mu.RUnlock()

	var dead []target
	for _, t := range targets {
		if err := t.ch.Send(envelope); err != nil {
			dead = append(dead, t)
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, t := range dead {
			h.removeLocked(t.sessionID, t.ch)
		}
		total := h.channelCountLocked()
		h.mu.Unlock()

		if h.mreg != nil {
			h.mreg.ConnectedClients.Set(float64(total))
		}
		log.Printf("dropped %d dead channel(s) during broadcast", len(dead))
	}

	if h.mreg != nil {
		h.mreg.EventsBroadcastTotal.Inc()
	}
}

// SendGraphState pushes the full projection to a single channel, used on
// connect and when a client explicitly requests a refresh
func (h *Hub) SendGraphState(ch Channel, graph *domain.Graph) error {
	return ch.Send(map[string]any{
		"type":      "graph_state",
		"data":      graph,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ping sends a keep-alive to every channel and prunes the ones that fail
func (h *Hub) Ping() {
	h.broadcast(map[string]any{
		"type":      "ping",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RunPinger pings on the given interval until stop is closed
func (h *Hub) RunPinger(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Ping()
		case <-stop:
			return
		}
	}
}

// SessionCount returns the number of distinct sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ChannelCount returns the number of connected channels
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelCountLocked()
}

func (h *Hub) channelCountLocked() int {
	total := 0
	for _, channels := range h.sessions {
		total += len(channels)
	}
	return total
}
