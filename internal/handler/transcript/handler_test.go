package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hopewhisperer/hope-whisperer/internal/model/chat"
	chatService "github.com/hopewhisperer/hope-whisperer/internal/service/chat"
)

func TestGetTranscript(t *testing.T) {
	svc := chatService.NewService()
	ctx := context.Background()
	if _, err := svc.CreateSession(ctx, "s1", "agent_1"); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := svc.SaveMessage(ctx, chat.Message{SessionID: "s1", Source: "user", Content: "I need to talk"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/transcripts/s1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Session  chat.Session   `json:"session"`
		Messages []chat.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Session.AgentID != "agent_1" || len(payload.Messages) != 1 || payload.Messages[0].Content != "I need to talk" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/transcripts/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
