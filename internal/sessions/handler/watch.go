package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"coachdesk/internal/sessions/livefeed"
	"coachdesk/pkg/config"
	httputil "coachdesk/pkg/http"
	"coachdesk/pkg/identity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WatchHandler streams live session snapshots over a websocket. Each frame
// is the subscriber's full current session list; the first frame arrives
// immediately after connect.
type WatchHandler struct {
	cfg      *config.Config
	feed     *livefeed.Feed
	upgrader websocket.Upgrader
}

func NewWatchHandler(cfg *config.Config, feed *livefeed.Feed) *WatchHandler {
	return &WatchHandler{
		cfg:  cfg,
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin is enforced by the gateway in front of this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WatchHandler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/api/v1/sessions/watch", h.Watch)
}

func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		h.cfg.Log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := h.feed.Subscribe(actor.ID, actor.Role)
	defer h.feed.Unsubscribe(sub)

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)
}

// readPump discards client frames; its job is noticing the close.
func (h *WatchHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WatchHandler) writePump(conn *websocket.Conn, sub *livefeed.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return

		case sessions, ok := <-sub.Updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(sessions); err != nil {
				h.cfg.Log.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WatchHandler) writeError(w http.ResponseWriter, err error) {
	if werr := httputil.WriteError(w, err); werr != nil {
		h.cfg.Log.Error("failed to write error response", "error", werr)
	}
}
