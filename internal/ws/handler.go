package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"syncroom/internal/config"
	"syncroom/internal/protocol"
	"syncroom/internal/room"
	"syncroom/internal/session"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	// Origin policy is left to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests and binds the resulting connections to
// their rooms.
type Handler struct {
	rooms *room.Supervisor
	cfg   config.WebSocketConfig
	log   *slog.Logger
}

// NewHandler creates the WebSocket endpoint handler.
func NewHandler(rooms *room.Supervisor, cfg config.WebSocketConfig, log *slog.Logger) *Handler {
	return &Handler{rooms: rooms, cfg: cfg, log: log}
}

// ServeHTTP admits a connection. Query parameters:
//
//	room     room identifier, defaults to "default"
//	user_id  stable user identity, generated when absent
//	name     display name, defaults to "Anonymous"
//	proto    "json" (default) or "binary"
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	codec, ok := protocol.CodecByName(q.Get("proto"))
	if !ok {
		http.Error(w, "unknown proto: must be \"json\" or \"binary\"", http.StatusBadRequest)
		return
	}
	roomID := q.Get("room")
	if roomID == "" {
		roomID = "default"
	}
	identity := session.Identity{
		UserID: q.Get("user_id"),
		Name:   q.Get("name"),
	}
	if identity.UserID == "" {
		identity.UserID = uuid.New().String()
	}
	if identity.Name == "" {
		identity.Name = "Anonymous"
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := NewConnection(socket, h.cfg.SendBuffer, h.cfg.WriteTimeout)

	rm := h.rooms.Room(roomID)
	if err := rm.Connect(r.Context(), conn, identity, codec); err != nil {
		h.log.Warn("room admission failed", "room", roomID, "user", identity.UserID, "error", err)
		_ = conn.Close(websocket.CloseInternalServerErr, "admission failed")
		return
	}

	h.readPump(rm, conn, identity.UserID)
}

// readPump owns the socket's read side for the connection's lifetime and
// feeds every inbound frame to the room in arrival order.
func (h *Handler) readPump(rm *room.Room, conn *Connection, userID string) {
	socket := conn.conn
	defer func() {
		rm.Disconnect(conn, "connection closed")
		_ = conn.Close(websocket.CloseNormalClosure, "")
	}()

	_ = socket.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("read error", "room", rm.ID(), "user", userID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		rm.HandleFrame(conn, data)
	}
}

// pingLoop keeps the connection's read deadline honest. WriteControl is
// safe to call concurrently with the writer goroutine.
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}
