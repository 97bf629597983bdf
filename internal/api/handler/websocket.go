package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qs3c/devpulse_tracker/config"
	"github.com/qs3c/devpulse_tracker/internal/api/middleware"
	"github.com/qs3c/devpulse_tracker/internal/pkg/pubsub"
	"github.com/qs3c/devpulse_tracker/internal/pkg/ws"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

const MessageTypeSnapshot = "snapshot"

type WebSocketHandler struct {
	hub      *ws.Hub
	store    *store.Store
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, st *store.Store, cors config.CORSConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		store: st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 非浏览器客户端不带 Origin
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(cors, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Listener 把 Store 变更投递给 hub，不在写路径上做网络写入
func (h *WebSocketHandler) Listener() store.Listener {
	return func(change store.Change) {
		h.hub.Publish(&ws.Message{
			Type: pubsub.MessageTypeChange,
			Data: pubsub.NewChangeMessage(change),
		})
	}
}

// Handle 连接建立后推送一次完整列表，之后推送每次变更
// GET /api/v1/ws
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := ws.NewClient(conn)
	// 先注册再发快照，快照之后的变更不会丢
	h.hub.Register(client)

	data, err := json.Marshal(&ws.Message{Type: MessageTypeSnapshot, Data: h.store.List()})
	if err == nil {
		err = client.Send(data)
	}
	if err != nil {
		log.Printf("Failed to send snapshot: %v", err)
		h.hub.Unregister(client)
		return
	}

	// 只读用于检测断开
	go func() {
		defer h.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
