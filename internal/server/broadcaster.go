package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Broadcaster fans refresh notifications out to connected display clients
type Broadcaster struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger.Named("broadcaster"),
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection
func (b *Broadcaster) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 8)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	b.logger.Info("client connected", zap.Int("clients", b.ClientCount()))

	go b.writeLoop(c)
	go b.readLoop(c)
}

// Broadcast sends a message to every connected client. Clients with a full
// send buffer are dropped rather than blocking the pipeline.
func (b *Broadcaster) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		b.logger.Error("marshal broadcast", zap.Error(err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			b.logger.Warn("client send buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.remove(c)
			return
		}
	}
}

// readLoop drains inbound frames so pings are answered and disconnects are
// noticed; clients are not expected to send anything meaningful.
func (b *Broadcaster) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			b.remove(c)
			return
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
		c.conn.Close()
	}
	b.mu.Unlock()
}
