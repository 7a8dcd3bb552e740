package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由CORS中间件统一控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TreeUpdateEvent 树更新事件，推送给订阅该任务的客户端
type TreeUpdateEvent struct {
	TaskID    string  `json:"task_id"`
	Code      string  `json:"code"`
	NewWeight float64 `json:"new_weight"`
	Action    string  `json:"action"` // rebalance, import, undo
}

// Hub 按任务分组的WebSocket连接管理
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool // taskID -> 连接集合
}

// NewHub 创建连接管理器
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]bool),
	}
}

// Register 注册订阅连接
func (h *Hub) Register(taskID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[taskID] == nil {
		h.conns[taskID] = make(map[*websocket.Conn]bool)
	}
	h.conns[taskID][conn] = true
}

// Unregister 注销连接并关闭
func (h *Hub) Unregister(taskID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[taskID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, taskID)
		}
	}
	conn.Close()
}

// Broadcast 向任务的所有订阅者推送事件，写失败的连接直接移除
func (h *Hub) Broadcast(taskID string, event *TreeUpdateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[taskID] {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("推送树更新事件失败，移除连接: %v", err)
			delete(h.conns[taskID], conn)
			conn.Close()
		}
	}
}
