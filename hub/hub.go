package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Event names pushed to connected dashboards.
const (
	EventRoomCreated  = "room_created"
	EventRoomUpdated  = "room_updated"
	EventRoomDeleted  = "room_deleted"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventSheetCreated = "sheet_created"
	EventSheetDeleted = "sheet_deleted"
)

const writeWait = 5 * time.Second

// Message is the frame sent to every client.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub keeps the registry of connected websocket clients and fans events
// out to all of them. Broadcasts are best effort: a connection that fails
// a write is closed and dropped, and callers are never told about it.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func New(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handle upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.readLoop(conn)
	return nil
}

// readLoop discards inbound frames; its job is noticing the close.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.log.Info("client disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	raw, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		h.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			h.log.Warn("drop client", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
