package control

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// hubBufferSize bounds a client's outgoing queue before it is
// disconnected as too slow to keep up, matching the teacher's
// WebSocketBufferSize constant.
const hubBufferSize = 256

// EventType tags a pushed WSEvent's payload shape.
type EventType string

const (
	EventDecision       EventType = "decision"
	EventTaskUpdate     EventType = "task_update"
	EventProposalUpdate EventType = "proposal_update"
	EventApprovalUpdate EventType = "approval_update"
)

// WSEvent is the envelope pushed to every connected dashboard client.
type WSEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out WSEvents to every connected WebSocket client, adapted
// from the teacher's internal/server/hub.go (register/unregister/
// broadcast channel triangle, slow-client eviction on full send
// buffer) generalized from dashboard-state pushes to Decision/Task/
// Proposal/Approval events.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, hubBufferSize),
	}
}

// Run drives the hub's event loop; call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish broadcasts a typed event to every connected client.
func (h *Hub) Publish(eventType EventType, data any) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		return
	}
	h.broadcast <- payload
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
