// Package wshub broadcasts engine events to websocket clients.
package wshub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The engine serves browser dApps from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotFunc supplies the full auction list for client snapshot
// requests.
type SnapshotFunc func(ctx context.Context) ([]*domain.Auction, error)

// Options configures a Hub.
type Options struct {
	Snapshot SnapshotFunc
	Logger   *log.Logger
	// OnClientsChanged reports the connected client count; optional.
	OnClientsChanged func(n int)
	// OnDropped reports a broadcast discarded for a slow client; optional.
	OnDropped func()
}

// Hub fans engine events out to every connected websocket client. It
// implements the engine's event publisher; Publish never blocks, slow
// clients are disconnected instead.
type Hub struct {
	snapshot  SnapshotFunc
	logger    *log.Logger
	onClients func(n int)
	onDropped func()

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]bool

	// done is closed when Run exits so connection goroutines never
	// block on a stopped hub.
	done chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub. Call Run before serving connections.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	onClients := opts.OnClientsChanged
	if onClients == nil {
		onClients = func(int) {}
	}
	onDropped := opts.OnDropped
	if onDropped == nil {
		onDropped = func() {}
	}
	return &Hub{
		snapshot:   opts.Snapshot,
		logger:     logger,
		onClients:  onClients,
		onDropped:  onDropped,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*client]bool),
		done:       make(chan struct{}),
	}
}

// Publish broadcasts an event to every connected client.
func (h *Hub) Publish(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Printf("[wshub] marshal %s event: %v", e.Type, err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Printf("[wshub] broadcast queue full, dropped %s event", e.Type)
		h.onDropped()
	}
}

// Run owns the client set. It returns when ctx is cancelled, closing
// every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.onClients(len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				h.onClients(len(h.clients))
			}
		case data := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// A client that cannot keep up gets cut off.
					delete(h.clients, c)
					close(c.send)
					h.onDropped()
				}
			}
			h.onClients(len(h.clients))
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.onClients(0)
			return
		}
	}
}

// ServeHTTP upgrades the request and pumps events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[wshub] upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendSize)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		if req.Type == "request_auctions" {
			h.sendSnapshot(ctx, c)
		}
	}
}

// sendSnapshot delivers the full auction list to one client only; other
// clients never see snapshot responses.
func (h *Hub) sendSnapshot(ctx context.Context, c *client) {
	if h.snapshot == nil {
		return
	}
	auctions, err := h.snapshot(ctx)
	if err != nil {
		h.logger.Printf("[wshub] snapshot: %v", err)
		return
	}
	data, err := json.Marshal(events.Event{Type: events.TypeAllAuctions, Payload: auctions})
	if err != nil {
		h.logger.Printf("[wshub] marshal snapshot: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		h.onDropped()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
