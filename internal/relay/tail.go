package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/domain"
)

// 实时追踪连接的超时与缓冲参数
const (
	tailWriteWait  = 10 * time.Second
	tailPongWait   = 60 * time.Second
	tailPingPeriod = (tailPongWait * 9) / 10
	tailSendBuffer = 64
)

// TailHub 管理实时追踪的 WebSocket 连接集合。
// 每当中继接收到一个报告信封，信封就会被广播给所有已连接的客户端。
// 发送缓冲写满的慢客户端会被直接断开，避免拖慢广播。
type TailHub struct {
	mu       sync.RWMutex
	clients  map[*tailClient]struct{}
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// tailClient 表示一个已连接的实时追踪客户端。
type tailClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewTailHub 创建并返回一个新的 TailHub 实例。
func NewTailHub(logger *logrus.Logger) *TailHub {
	return &TailHub{
		clients: make(map[*tailClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 中继是内部服务，跨域检查交给前置网关
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeTail 处理 WebSocket 升级请求并注册实时追踪客户端。
func (h *TailHub) ServeTail(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade tail connection")
		return
	}

	client := &tailClient{
		conn: conn,
		send: make(chan []byte, tailSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", conn.RemoteAddr().String()).Debug("Tail client connected")

	go h.writePump(client)
	go h.readPump(client)
}

// Broadcast 把报告信封广播给所有已连接的客户端。
// 发送缓冲写满的客户端会被移除并断开。
func (h *TailHub) Broadcast(rep *domain.Report) {
	data, err := json.Marshal(rep)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode report for tail broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// Close 断开所有客户端连接。
func (h *TailHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	return nil
}

// ClientCount 返回当前连接的客户端数。
func (h *TailHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump 消费客户端发来的消息（仅处理控制帧），连接关闭时注销客户端。
func (h *TailHub) readPump(client *tailClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(tailPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(tailPongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump 把广播消息写入客户端连接，并定期发送 ping 保活。
func (h *TailHub) writePump(client *tailClient) {
	ticker := time.NewTicker(tailPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(tailWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(tailWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
