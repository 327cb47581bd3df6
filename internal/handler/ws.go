package handler

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsChannel adapts a websocket connection to the hub's channel
// interface. gorilla connections allow one concurrent writer, so sends
// are serialized with a mutex.
type wsChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsChannel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// clientMessage is what connected clients may send us
type clientMessage struct {
	Type string `json:"type"`
}

// HandleWebSocket upgrades the connection, registers it with the hub,
// pushes the current graph state, and services client messages until the
// connection drops.
func (h *GraphHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		h.writeError(w, "Invalid session", "session_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Printf("websocket upgrade failed for session %s: %v", sessionID, err)
		return
	}

	ch := &wsChannel{conn: conn}
	h.hub.Connect(sessionID, ch)
	defer func() {
		h.hub.Disconnect(sessionID, ch)
		conn.Close()
	}()

	if err := h.pushGraphState(r, ch); err != nil {
		log.Printf("initial graph state push failed for session %s: %v", sessionID, err)
		return
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error for session %s: %v", sessionID, err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			if err := ch.Send(map[string]any{
				"type":      "pong",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		case "request_graph_state":
			if err := h.pushGraphState(r, ch); err != nil {
				log.Printf("graph state push failed for session %s: %v", sessionID, err)
				return
			}
		default:
			// Unknown message types are ignored
		}
	}
}

func (h *GraphHandler) pushGraphState(r *http.Request, ch *wsChannel) error {
	g, err := h.svc.GetGraph(r.Context(), false)
	if err != nil {
		return err
	}
	return h.hub.SendGraphState(ch, g)
}
