package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/citiesregional/regiond/pkg/messaging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one websocket subscriber following a region's event stream.
type wsClient struct {
	id       uuid.UUID
	regionID string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
}

// eventHub fans regional events out to websocket subscribers, grouped by
// region.
type eventHub struct {
	mu      sync.RWMutex
	clients map[string]map[uuid.UUID]*wsClient
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[string]map[uuid.UUID]*wsClient)}
}

func (h *eventHub) add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.regionID] == nil {
		h.clients[client.regionID] = make(map[uuid.UUID]*wsClient)
	}
	h.clients[client.regionID][client.id] = client
}

func (h *eventHub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers, ok := h.clients[client.regionID]; ok {
		delete(peers, client.id)
		if len(peers) == 0 {
			delete(h.clients, client.regionID)
		}
	}
}

func (h *eventHub) broadcast(regionID string, msg messaging.RegionEventMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[regionID] {
		select {
		case client.send <- payload:
		default:
			// Slow subscriber, drop the event rather than block.
		}
	}
}

// streamEvents upgrades the request and streams the region's events until
// the client goes away.
func (s *Server) streamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &wsClient{
		id:       uuid.New(),
		regionID: c.Param("id"),
		conn:     conn,
		send:     make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	s.hub.add(client)

	go s.wsReadPump(client)
	go s.wsWritePump(client)
}

func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		s.hub.remove(client)
		close(client.done)
		client.conn.Close()
	}()

	// The stream is one-way; reads only detect disconnects.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) wsWritePump(client *wsClient) {
	for {
		select {
		case payload := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}
