package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tutorrelay/internal/config"
	"tutorrelay/pkg/interfaces"
)

const maxFrameSize = 64 * 1024

// Handler upgrades HTTP requests to websocket connections and feeds their
// frames to a FrameHandler. Participants identify themselves with a register
// frame after connecting, so the upgrade itself carries no parameters.
type Handler struct {
	frames   interfaces.FrameHandler
	cfg      *config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a websocket handler. A nil cfg uses the defaults.
func NewHandler(frames interfaces.FrameHandler, cfg *config.WebSocketConfig, logger *zap.Logger) *Handler {
	if cfg == nil {
		cfg = config.DefaultConfig().WebSocket
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		frames: frames,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// HandleWebSocket upgrades the request and starts reading frames.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	wsConn := NewConnection(conn, h.cfg.BufferSize, h.cfg.WriteTimeout)
	h.logger.Debug("WebSocket connected",
		zap.String("connection", wsConn.ID()),
		zap.String("remote_addr", r.RemoteAddr))

	go h.handleConnection(wsConn)
}

// handleConnection runs the read loop and heartbeat until the socket closes,
// then reports the disconnect exactly once.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		_ = conn.Close()
		h.frames.HandleDisconnect(conn)
		h.logger.Debug("WebSocket disconnected", zap.String("connection", conn.ID()))
	}()

	conn.conn.SetReadLimit(maxFrameSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		h.logger.Warn("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.heartbeat(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Info("WebSocket read error", zap.String("connection", conn.ID()), zap.Error(err))
			}
			return
		}
		// Any traffic proves the peer is alive.
		_ = conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		if messageType != websocket.TextMessage {
			continue
		}
		h.frames.HandleFrame(conn, data)
	}
}

func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}
