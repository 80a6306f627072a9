package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
)

// Hub fans bus events out to the websocket clients of the event's tenant.
type Hub struct {
	clients    map[*Client]bool
	tenants    map[string]map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		tenants:    make(map[string]map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws_hub"),
	}
}

// Register subscribes the hub to every bus event.
func (h *Hub) Register(b *bus.Bus) string {
	return b.Subscribe(bus.Wildcard, h.Handle)
}

// Handle queues evt for the tenant's clients. It never fails; a full queue
// drops the frame.
func (h *Hub) Handle(ctx context.Context, evt bus.Event) error {
	if evt.TenantID == "" {
		return nil
	}

	msg := Message{
		TenantID:  evt.TenantID,
		ID:        evt.ID,
		Type:      evt.Type,
		Data:      evt.Payload,
		Timestamp: evt.Timestamp,
	}

	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.WarnContext(ctx, "broadcast queue full, dropping frame",
			"tenant_id", evt.TenantID,
			"event_type", evt.Type,
		)
	}
	return nil
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.broadcastToTenant(msg)
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	h.tenants = make(map[string]map[*Client]bool)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.tenants[client.tenantID] == nil {
		h.tenants[client.tenantID] = make(map[*Client]bool)
	}
	h.tenants[client.tenantID][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	delete(h.tenants[client.tenantID], client)
	if len(h.tenants[client.tenantID]) == 0 {
		delete(h.tenants, client.tenantID)
	}

	close(client.send)
}

func (h *Hub) broadcastToTenant(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.tenants[msg.TenantID]
	if len(clients) == 0 {
		return
	}

	message, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode frame", "event_type", msg.Type, "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- message:
		default:
			h.logger.Warn("slow client disconnected", "tenant_id", msg.TenantID)
			h.dropLocked(client)
		}
	}
}

func (h *Hub) GetConnectedClients(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.tenants[tenantID])
}
