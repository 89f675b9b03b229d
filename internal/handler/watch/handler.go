package watch

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/profile-service/backend/internal/service/watch"
	"github.com/zhouzirui/profile-service/backend/pkg/utils"
)

const (
	pingInterval = 54 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Subscriber 是变更推送所需的最小接口
type Subscriber interface {
	Subscribe() (string, <-chan watch.Event, func())
}

// Handler 通过SSE和WebSocket推送profile变更
type Handler struct {
	hub          Subscriber
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// New 创建变更推送处理器
func New(hub Subscriber) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: pingInterval,
	}
}

// RegisterRoutes 注册变更推送路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/watch/profiles", h.handleSSE)
	r.Get("/ws/profiles", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleSSE 以Server-Sent Events推送变更
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, events, cancel := h.hub.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] subscriber %s connected", id)
	defer log.Printf("[sse] subscriber %s disconnected", id)

	if err := utils.SendSSEComment(w, flusher, "connected "+id); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, evt.ID, evt.Kind, evt); err != nil {
				log.Printf("[sse] write failed for %s: %v", id, err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}

// handleWebSocket 以WebSocket推送变更
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, events, cancel := h.hub.Subscribe()
	defer cancel()

	log.Printf("[websocket] subscriber %s connected", id)
	defer log.Printf("[websocket] subscriber %s disconnected", id)

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go h.readLoop(conn, stop)

	if err := h.write(conn, outgoingMessage{Type: "connected", Data: map[string]string{"subscriberId": id}}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	// all writes happen on this goroutine; gorilla allows one concurrent writer
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, outgoingMessage{Type: "change", Data: evt}); err != nil {
				log.Printf("[websocket] write failed for %s: %v", id, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 丢弃客户端消息，只用于感知连接关闭
func (h *Handler) readLoop(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Handler) write(conn *websocket.Conn, msg outgoingMessage) error {
	msg.Timestamp = time.Now().Unix()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}
