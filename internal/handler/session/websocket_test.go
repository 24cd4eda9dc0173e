package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsReply struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func dialWS(t *testing.T, allowed map[string]struct{}) *websocket.Conn {
	t.Helper()
	r, sh, _ := setupRouter(t, true)
	NewWebSocketHandler(sh, allowed).RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips pushed views until a reply of one of the given types.
func readUntil(t *testing.T, conn *websocket.Conn, types ...string) wsReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var reply wsReply
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		for _, want := range types {
			if reply.Type == want {
				return reply
			}
		}
	}
}

func TestWebSocketPushesInitialView(t *testing.T) {
	conn := dialWS(t, nil)

	reply := readUntil(t, conn, "view")
	if reply.Data["mode"] != "conversation" || reply.Data["status"] != "disconnected" {
		t.Fatalf("unexpected initial view %+v", reply.Data)
	}
}

func TestWebSocketCommands(t *testing.T) {
	conn := dialWS(t, nil)
	readUntil(t, conn, "view")

	if err := conn.WriteJSON(map[string]any{"type": "agent", "data": map[string]string{"agentId": "agent_ws"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readUntil(t, conn, "result", "error")
	if reply.Type != "result" || reply.Data["command"] != "agent" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	view, _ := reply.Data["view"].(map[string]any)
	if view["agentId"] != "agent_ws" {
		t.Fatalf("expected agent in view, got %+v", view)
	}

	if err := conn.WriteJSON(map[string]any{"type": "volume", "data": map[string]float64{"volume": 2}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reply := readUntil(t, conn, "result", "error"); reply.Type != "error" {
		t.Fatalf("expected error for out of range volume, got %+v", reply)
	}

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = readUntil(t, conn, "result", "error")
	if reply.Type != "error" || !strings.Contains(reply.Data["message"].(string), "unknown command") {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	r, sh, _ := setupRouter(t, true)
	NewWebSocketHandler(sh, map[string]struct{}{"http://allowed.example": {}}).RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://allowed.example"}})
	if err != nil {
		t.Fatalf("expected allowed origin to connect: %v", err)
	}
	conn.Close()
}
