package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketHandler 通过单条 WebSocket 推送视图并接收控制指令
type WebSocketHandler struct {
	shell    Shell
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器。allowed 为跨域白名单，同源请求始终放行。
func NewWebSocketHandler(sh Shell, allowed map[string]struct{}) *WebSocketHandler {
	return &WebSocketHandler{
		shell: sh,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(allowed),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func checkOrigin(allowed map[string]struct{}) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
}

type inboundCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn serialises writes; gorilla allows a single concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msgType string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()})
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] client connected remote=%s", r.RemoteAddr)
	defer log.Printf("[websocket] client disconnected remote=%s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{conn: conn}
	views, unsubscribe := h.shell.Subscribe()
	defer unsubscribe()

	if err := c.send("view", h.shell.View()); err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go h.forwardViews(ctx, c, views)
	go pingLoop(ctx, conn)

	for {
		var cmd inboundCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if err := h.execute(ctx, cmd); err != nil {
			_ = c.send("error", map[string]string{"command": cmd.Type, "message": err.Error()})
			continue
		}
		_ = c.send("result", map[string]any{"command": cmd.Type, "view": h.shell.View()})
	}
}

func (h *WebSocketHandler) execute(ctx context.Context, cmd inboundCommand) error {
	switch cmd.Type {
	case "start":
		return h.shell.StartConversation(ctx)
	case "end":
		h.shell.EndConversation(ctx)
		return nil
	case "permission":
		h.shell.RequestPermission(ctx)
		return nil
	case "agent":
		var payload struct {
			AgentID string `json:"agentId"`
		}
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return fmt.Errorf("invalid agent payload: %w", err)
		}
		return h.shell.SetAgentID(payload.AgentID)
	case "volume":
		var payload struct {
			Volume *float64 `json:"volume"`
		}
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return fmt.Errorf("invalid volume payload: %w", err)
		}
		if payload.Volume == nil {
			return fmt.Errorf("volume is required")
		}
		return h.shell.SetVolume(ctx, *payload.Volume)
	case "dismiss":
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return fmt.Errorf("invalid dismiss payload: %w", err)
		}
		return h.shell.DismissNotice(payload.ID)
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func (h *WebSocketHandler) forwardViews(ctx context.Context, c *wsConn, views <-chan shell.View) {
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			if err := c.send("view", view); err != nil {
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
