package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 5 * time.Second
	broadcastSize = 256
)

// Hub 本地网关的 websocket 连接集合，所有连接收到相同的变更推送
type Hub struct {
	clients   map[*Client]struct{}
	broadcast chan *Message
	mu        sync.RWMutex
}

type Client struct {
	Conn *websocket.Conn
	mu   sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan *Message, broadcastSize),
	}
}

// Run 消费 Publish 投递的消息，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			if err := h.Broadcast(msg); err != nil {
				log.Printf("Broadcast marshal error: %v", err)
			}
		}
	}
}

// Publish 非阻塞投递，队列满时丢弃并返回 false
func (h *Hub) Publish(msg *Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		log.Printf("Broadcast queue full, dropping %s message", msg.Type)
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{Conn: conn}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Websocket client connected, total: %d", total)
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		client.Conn.Close()
		log.Printf("Websocket client disconnected")
	}
}

// Send 写入单个连接
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast 推送给所有连接，写失败的连接被移除
func (h *Hub) Broadcast(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(data); err != nil {
			log.Printf("Broadcast write error: %v", err)
			h.Unregister(c)
		}
	}
	return nil
}

// ConnectionCount 在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
