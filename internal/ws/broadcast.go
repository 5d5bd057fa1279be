package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/homedash/backend/internal/metrics"
)

// client pairs a websocket connection with a dedicated writer goroutine.
// All outbound traffic goes through the send channel so only one goroutine
// ever writes to the connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{} // closed on unregister
	dead chan struct{} // closed by writePump on write error
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
		dead: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				close(c.dead)
				return
			}
		case <-c.done:
			return
		}
	}
}

// trySend queues a message without blocking. Returns false when the client
// is gone or its buffer is full.
func (c *client) trySend(data []byte) bool {
	if c.failed() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// failed reports whether the writer goroutine died on a write error.
func (c *client) failed() bool {
	select {
	case <-c.dead:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	close(c.done)
}

// Broadcaster owns the set of connected viewers and fans rendered widget
// updates out to all of them. Every viewer receives every update; there is
// no per-widget subscription. A viewer whose delivery fails is removed as
// part of the same broadcast call.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	metrics.ConnectedClients.Inc()
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()

	if ok {
		metrics.ConnectedClients.Dec()
	}
}

// Broadcast pushes a rendered widget fragment to every connected viewer.
// It never returns an error: a viewer that cannot accept delivery is
// disconnected and dropped, the rest still receive the message.
func (b *Broadcaster) Broadcast(integration, html string) {
	b.push(Envelope{
		Type:        MsgWidgetUpdate,
		Integration: integration,
		HTML:        html,
	})
}

// BroadcastReload tells every viewer to do a full page reload. Used after
// config or layout changes that a fragment swap cannot express.
func (b *Broadcaster) BroadcastReload() {
	b.push(Envelope{Type: MsgRefresh})
}

func (b *Broadcaster) push(msg Envelope) {
	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	for _, c := range clients {
		if !c.trySend(data) {
			log.Printf("ws client not accepting delivery, disconnecting")
			b.RemoveClient(c)
			metrics.ClientsDropped.Inc()
		}
	}

	metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop disconnects every viewer. Called on shutdown after the refresh
// drivers have been stopped.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.close()
		delete(b.clients, c)
		metrics.ConnectedClients.Dec()
	}
}
