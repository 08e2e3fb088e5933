// Package websocket provides WebSocket connection management and message broadcasting.
package websocket

import (
	"log"
	"sync"
)

// outbound is a message queued for delivery. An empty workflowID means every
// client receives it.
type outbound struct {
	workflowID string
	data       []byte
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Messages waiting to be fanned out
	broadcast chan outbound

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}

	// Mutex for thread-safe client access
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop until Stop is called.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if msg.workflowID != "" && !client.Subscribed(msg.workflowID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client send buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.enqueue(outbound{data: message})
}

// BroadcastTo sends a message to the clients subscribed to a workflow.
func (h *Hub) BroadcastTo(workflowID string, message []byte) {
	h.enqueue(outbound{workflowID: workflowID, data: message})
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	send chan []byte

	// canSubscribe guards Subscribe; nil allows every workflow.
	canSubscribe func(workflowID string) bool

	mu            sync.RWMutex
	subscriptions map[string]bool
}

// NewClient creates a new WebSocket client. canSubscribe decides which
// workflows the connection may follow.
func NewClient(hub *Hub, canSubscribe func(workflowID string) bool) *Client {
	return &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		canSubscribe:  canSubscribe,
		subscriptions: make(map[string]bool),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}

// Subscribe adds a workflow to the client's subscriptions. It reports false,
// and subscribes to nothing, when the client may not follow the workflow.
func (c *Client) Subscribe(workflowID string) bool {
	if c.canSubscribe != nil && !c.canSubscribe(workflowID) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[workflowID] = true
	return true
}

// Unsubscribe removes a workflow from the client's subscriptions.
func (c *Client) Unsubscribe(workflowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, workflowID)
}

// Subscribed reports whether the client follows a workflow.
func (c *Client) Subscribed(workflowID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[workflowID]
}
