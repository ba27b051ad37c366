package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"galaxy-snake/internal/net/intake"
	"galaxy-snake/internal/net/proto"
	"galaxy-snake/internal/server"
	"galaxy-snake/internal/telemetry"
)

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades screen connections, delivers the initial snapshot, and
// pumps inbound messages through the intake boundary.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs the websocket handler for the given hub.
func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &Handler{hub: hub, logger: logger, upgrader: upgrader}
}

// Handle serves one screen connection for its whole lifetime.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	screenID := r.URL.Query().Get("screen")
	if screenID == "" {
		http.Error(w, "missing screen", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for screen %s: %v", screenID, err)
		return
	}

	// The hub queues the current full snapshot as the first frame, so a
	// connecting or reconnecting screen renders correctly with no history.
	h.hub.Subscribe(screenID, wsConn{conn: conn})

	ctx := intake.CommandContext{
		Engine: h.hub,
		Tick:   h.hub.Tick,
		Now:    time.Now,
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(screenID)
			return
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from screen %s: %v", screenID, err)
			continue
		}

		if _, ok, reason := intake.StageClientCommand(ctx, screenID, msg); !ok {
			h.logger.Printf("dropped %q from screen %s: %s", msg.Type, screenID, reason)
		}
	}
}

// wsConn adapts a websocket connection to the hub's subscriber surface.
type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) Write(payload []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c wsConn) SetWriteDeadline(deadline time.Time) error {
	return c.conn.SetWriteDeadline(deadline)
}

func (c wsConn) Close() error { return c.conn.Close() }
