package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB

	wsTypeSnapshot = "snapshot"
)

// wsEnvelope carries the snapshot and error messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsEvent is one broadcast event on the wire.
type wsEvent struct {
	Type       string    `json:"type"`
	Seq        uint64    `json:"seq"`
	RecordedAt time.Time `json:"recorded_at"`
	Data       any       `json:"data"`
}

type wsSnapshot struct {
	Statistics models.Statistics               `json:"statistics"`
	Actuators  map[string]models.ActuatorState `json:"actuators"`
	Sensors    []models.SensorReading          `json:"sensors"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict to configured dashboard origins
}

// @Summary      Live event stream
// @Description  WebSocket. Sends a snapshot first, then every event as {type, seq, recorded_at, data}. Optional ?kinds=a,b filters event types.
// @Tags         events
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	kinds := parseKinds(c.Query("kinds"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// subscribe before the snapshot so nothing between the two is missed
	sub := h.services.Events.Subscribe()
	defer h.services.Events.Unsubscribe(sub)

	done := make(chan struct{})
	go h.startReader(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.writeJSON(conn, wsEnvelope{Type: wsTypeSnapshot, Data: h.snapshot()}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-sub.Done():
			// dropped by the broadcaster, the client must reconnect
			if h.log != nil {
				h.log.Infow("ws_subscription_closed", "subscriber", sub.ID(), "reason", sub.Reason())
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, sub.Reason()))
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case e := <-sub.Events():
			if len(kinds) > 0 && !lo.Contains(kinds, e.Type) {
				continue
			}
			msg := wsEvent{Type: e.Type, Seq: e.Seq, RecordedAt: e.RecordedAt, Data: e.Payload()}
			if err := h.writeJSON(conn, msg); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "seq", e.Seq)
				}
				return
			}
		}
	}
}

func (h *Handler) snapshot() wsSnapshot {
	return wsSnapshot{
		Statistics: h.services.Monitoring.Statistics(),
		Actuators: lo.KeyBy(h.services.Actuators.ActuatorStates(), func(s models.ActuatorState) string {
			return s.RelayID
		}),
		Sensors: h.services.Monitoring.Sensors(),
	}
}

func (h *Handler) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// parseKinds splits ?kinds=a,b into normalized event types.
func parseKinds(s string) []string {
	parts := strings.Split(s, ",")
	kinds := lo.FilterMap(parts, func(p string, _ int) (string, bool) {
		p = strings.ToLower(strings.TrimSpace(p))
		return p, p != ""
	})
	return lo.Uniq(kinds)
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}
