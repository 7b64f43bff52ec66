// Package websocket implements the realtime sync bus: a per-event broadcast
// room that every authorized client joins on connection, plus the
// request/acknowledgement protocol through which clients issue mutations.
//
// Broadcasts carry identifiers only, never full payloads. A notification is a
// "something changed, re-check" signal — consumers pull authoritative state
// through the read API, which keeps every viewer consistent with the store
// even under partial or out-of-order delivery.
package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Client represents a single connected client. Each connected volunteer
// station (a referee tablet, the audience display, the judge-advisor laptop)
// has one Client instance on the server.
type Client struct {
	EventID string      // Which event room this client joined
	Send    chan []byte // Buffered channel of outgoing messages; the Hub writes here, the socket writer drains it
}

// Message is a unit of data to broadcast to all clients in one event room.
type Message struct {
	EventID string
	Data    []byte
}

// Notification is the server→client envelope. Params hold identifiers only
// (team id, scoresheet id, deliberation id) — never document bodies.
type Notification struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// Hub manages all active connections, grouped by event ID. It runs in its own
// goroutine and processes registration, unregistration, and broadcast events
// through channels, keeping all map mutation on a single goroutine. A room is
// created when its first subscriber registers and torn down when the last one
// leaves.
type Hub struct {
	// rooms: eventID -> set of clients. map[*Client]bool as a set is the
	// usual idiom since Go has no built-in set type.
	rooms map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	// mu protects rooms for the read done on the broadcast path while the
	// loop goroutine mutates it on register/unregister.
	mu sync.RWMutex
}

// NewHub creates an empty Hub. The broadcast channel is buffered so engines
// emitting notifications don't block if the loop is briefly busy; register
// and unregister are unbuffered because those must complete synchronously
// with the connection lifecycle.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the Hub's main event loop. Call it in a goroutine ("go hub.Run()").
func (h *Hub) Run() {
	for {
		select {

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.EventID] == nil {
				h.rooms[client.EventID] = make(map[*Client]bool)
			}
			h.rooms[client.EventID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.EventID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send) // signals the socket writer goroutine to stop
					if len(clients) == 0 {
						delete(h.rooms, client.EventID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := h.rooms[msg.EventID]
			h.mu.RUnlock()

			for client := range clients {
				select {
				case client.Send <- msg.Data:
				// A full Send buffer means the client stopped draining its
				// socket. Dropping it keeps one slow consumer from stalling
				// the broadcast for the whole room; on reconnect it must
				// resynchronize by pulling current state anyway.
				default:
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
		}
	}
}

// Notify broadcasts a named identifier-only notification to every client in
// the event's room. Engines call this only after the underlying store write
// has been acknowledged; past that point delivery is best-effort.
func (h *Hub) Notify(eventID uuid.UUID, name string, params map[string]string) {
	data, err := json.Marshal(Notification{Name: name, Params: params})
	if err != nil {
		log.Printf("websocket: failed to encode %s notification: %v", name, err)
		return
	}
	h.broadcast <- &Message{EventID: eventID.String(), Data: data}
}

// Register adds a client to its event room.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client when its connection closes. No authorization
// state survives the disconnect.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// RoomSize reports how many clients are currently in an event's room.
func (h *Hub) RoomSize(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
