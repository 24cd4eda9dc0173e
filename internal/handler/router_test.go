package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hopewhisperer/hope-whisperer/internal/credential"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	"github.com/hopewhisperer/hope-whisperer/internal/service/chat"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session/sessiontest"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gate := permission.NewGate(permission.ProberFunc(func(context.Context) error { return nil }))
	adapter := session.NewAdapter(sessiontest.NewTransport(), gate)
	transcripts := chat.NewService()
	sh := shell.New(credential.NewStore(credential.NewMemoryBackend()), gate, adapter, transcripts, 0.8)
	sh.Init(context.Background())

	srv := httptest.NewServer(NewRouter(sh, transcripts, map[string]struct{}{"http://localhost:5173": {}}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}

func readViewEvent(t *testing.T, reader *bufio.Reader) shell.View {
	t.Helper()
	var event string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "view":
			var v shell.View
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v); err != nil {
				t.Fatalf("decode view: %v", err)
			}
			return v
		}
	}
}

func TestEventsStreamViews(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if v := readViewEvent(t, reader); v.Mode != shell.ModeSetup {
		t.Fatalf("expected setup mode first, got %s", v.Mode)
	}

	put, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/credential", strings.NewReader(`{"apiKey":"abc123"}`))
	put.Header.Set("Content-Type", "application/json")
	putResp, err := http.DefaultClient.Do(put)
	if err != nil {
		t.Fatalf("PUT credential: %v", err)
	}
	putResp.Body.Close()

	if v := readViewEvent(t, reader); v.Mode != shell.ModeConversation {
		t.Fatalf("expected conversation mode, got %s", v.Mode)
	}
}
