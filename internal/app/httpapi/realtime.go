package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Hub fans order status events out to websocket subscribers, grouped per
// tenant. It satisfies the order service's event publisher.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an event hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*wsClient]struct{}),
	}
}

// PublishOrderEvent sends the event to every subscriber of its tenant.
// Subscribers that cannot keep up are dropped.
func (h *Hub) PublishOrderEvent(ev order.StatusEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("encode order event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.TenantID] {
		select {
		case c.send <- payload:
		default:
			h.dropLocked(ev.TenantID, c)
		}
	}
}

// Subscribe upgrades the request to a websocket and streams the tenant's
// order events until the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, tenantID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	if h.clients[tenantID] == nil {
		h.clients[tenantID] = make(map[*wsClient]struct{})
	}
	h.clients[tenantID][c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(tenantID, c)
}

func (h *Hub) writeLoop(c *wsClient) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards inbound frames and unregisters the client when the
// connection drops.
func (h *Hub) readLoop(tenantID string, c *wsClient) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(tenantID, c)
		h.mu.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) dropLocked(tenantID string, c *wsClient) {
	if _, ok := h.clients[tenantID][c]; !ok {
		return
	}
	delete(h.clients[tenantID], c)
	if len(h.clients[tenantID]) == 0 {
		delete(h.clients, tenantID)
	}
	close(c.send)
	_ = c.conn.Close()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tenantID, set := range h.clients {
		for c := range set {
			h.dropLocked(tenantID, c)
		}
	}
}
