// Package ws streams state-change events to connected subscribers.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/backend/internal/domain/state"
	"github.com/pagelift/pagelift/backend/internal/infrastructure/monitoring"
	"github.com/pagelift/pagelift/backend/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// message is one inbound client frame.
type message struct {
	Type string `json:"type"`
}

// wsConn serializes writes; the push forwarder and the reply path share the
// connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// Handler manages WebSocket connections
type Handler struct {
	bus     *state.Bus
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(bus *state.Bus, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		bus:     bus,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and streams applyState pushes until
// the client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	clientID, pushes := h.bus.Subscribe()
	defer h.bus.Unsubscribe(clientID)

	h.send(conn, map[string]interface{}{
		"type":    "system",
		"message": "Connected to PageLift event stream",
	})

	// Forward state pushes while the reader below owns the connection's
	// lifetime.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case push := <-pushes:
				if err := h.send(conn, push); err != nil {
					return
				}
				if h.metrics != nil {
					h.metrics.RecordWSMessage("out", string(push.Action))
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	for {
		_, frame, err := raw.ReadMessage()
		if err != nil {
			return
		}

		var msg message
		if err := sonic.Unmarshal(frame, &msg); err != nil {
			h.sendError(conn, "malformed message")
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "ping":
			h.send(conn, map[string]interface{}{"type": "pong"})
		case "getState":
			resp, err := h.bus.AskDefault(state.Request{Action: state.ActionGetState})
			if err != nil {
				h.sendError(conn, "state unavailable")
				continue
			}
			h.send(conn, map[string]interface{}{
				"type":  "state",
				"state": resp.State,
			})
		default:
			h.sendError(conn, "unknown message type")
		}
	}
}

func (h *Handler) send(conn *wsConn, data interface{}) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return err
	}
	return conn.write(payload)
}

func (h *Handler) sendError(conn *wsConn, msg string) error {
	return h.send(conn, map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
