package relay

import (
	"sync"

	"github.com/gorilla/websocket"
)

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	roomID    string
	connID    string
	closeOnce sync.Once
}

func (c *wsClient) trySend(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub tracks live websocket connections per room and fans payloads out to
// them. Slow clients get disconnected rather than block the room.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]*wsClient // roomID -> connID -> client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*wsClient),
	}
}

func (h *Hub) Add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.roomID]
	if !ok {
		clients = make(map[string]*wsClient)
		h.rooms[client.roomID] = clients
	}

	// Replace an existing connection for the same connection id.
	if old := clients[client.connID]; old != nil {
		_ = old.conn.Close()
		old.closeSend()
	}

	clients[client.connID] = client
}

func (h *Hub) Remove(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}

	if client, exists := clients[connID]; exists {
		client.closeSend()
	}
	delete(clients, connID)
	if len(clients) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) SendTo(roomID, connID string, payload []byte) bool {
	h.mu.Lock()
	var client *wsClient
	if clients, ok := h.rooms[roomID]; ok {
		client = clients[connID]
	}
	h.mu.Unlock()

	if client == nil {
		return false
	}

	if !client.trySend(payload) {
		_ = client.conn.Close()
		return false
	}
	return true
}

// Broadcast delivers payload to every room member except connID ("" means
// everyone).
func (h *Hub) Broadcast(roomID, exceptConnID string, payload []byte) {
	h.mu.Lock()
	var clients []*wsClient
	if members, ok := h.rooms[roomID]; ok {
		clients = make([]*wsClient, 0, len(members))
		for connID, client := range members {
			if connID == exceptConnID {
				continue
			}
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	for _, client := range clients {
		if !client.trySend(payload) {
			_ = client.conn.Close()
		}
	}
}

func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	clients, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, roomID)
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
		client.closeSend()
	}
}
