// Package ws pushes order updates to connected clients over WebSocket.
// Each client sees only the orders its authenticated actor is allowed to
// see; the full snapshot is filtered per connection before writing.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/prato-delivery/internal/domain/auth"
	"github.com/xenking/prato-delivery/internal/domain/order"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware in front of the API; the
	// handshake itself accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is the single frame type pushed to clients: the orders visible to
// the connected actor after every store mutation.
type Message struct {
	Type      string        `json:"type"`
	Orders    []order.Order `json:"orders"`
	Timestamp string        `json:"timestamp"`
}

type client struct {
	conn  *websocket.Conn
	send  chan []order.Order
	actor auth.Actor
}

// Hub fans store snapshots out to WebSocket clients. Register it as a store
// subscriber and run it with Run.
type Hub struct {
	lg *zap.Logger

	clients    map[*client]struct{}
	broadcast  chan []order.Order
	register   chan *client
	unregister chan *client
}

func NewHub(lg *zap.Logger) *Hub {
	return &Hub{
		lg:         lg.Named("ws"),
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []order.Order, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run owns the client set until ctx is cancelled. All registration and
// broadcast traffic goes through this single goroutine, so no locking is
// needed around the map.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return ctx.Err()

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.lg.Info("Client connected",
				zap.String("role", string(c.actor.Role)),
				zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.lg.Info("Client disconnected", zap.Int("clients", len(h.clients)))

		case orders := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- orders:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish queues a snapshot for broadcast. It never blocks; when the hub is
// backlogged the frame is dropped, the next snapshot supersedes it anyway.
func (h *Hub) Publish(orders []order.Order) {
	select {
	case h.broadcast <- orders:
	default:
		h.lg.Warn("Broadcast queue full, dropping snapshot")
	}
}

// Handle upgrades the request to a WebSocket connection. The actor must
// already be resolved by the authentication middleware.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zctx.From(r.Context()).Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan []order.Order, sendBuffer),
		actor: actor,
	}
	h.register <- c

	go c.writePump(h.lg)
	go c.readPump(h)
}

// visible filters a snapshot down to what the client's actor may see.
// Mirrors the per-role list operations on the order store.
func (c *client) visible(orders []order.Order) []order.Order {
	if c.actor.Role == auth.RoleAdmin {
		return orders
	}
	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		switch c.actor.Role {
		case auth.RoleCustomer:
			if o.Customer.Name == c.actor.Name {
				out = append(out, o)
			}
		case auth.RoleRestaurant:
			if o.Restaurant.Name == c.actor.Name {
				out = append(out, o)
			}
		case auth.RoleCourier:
			if o.AvailableForDelivery() || (o.Courier != nil && o.Courier.Name == c.actor.Name) {
				out = append(out, o)
			}
		}
	}
	return out
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; inbound frames are drained for control handling.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(lg *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case orders, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}

			msg := Message{
				Type:      "orders",
				Orders:    c.visible(orders),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			data, err := json.Marshal(msg)
			if err != nil {
				lg.Error("Marshal snapshot", zap.Error(err))
				continue
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
