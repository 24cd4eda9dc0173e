package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/hopewhisperer/hope-whisperer/internal/model/chat"
	chat "github.com/hopewhisperer/hope-whisperer/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "01HX", "agent_123")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != "01HX" {
		t.Fatalf("unexpected session ID: got %s", got.ID)
	}
	if got.AgentID != "agent_123" {
		t.Fatalf("unexpected agent ID: got %s", got.AgentID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestServiceCreateSessionValidation(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, "", "agent"); !errors.Is(err, chat.ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "s1", "  "); !errors.Is(err, chat.ErrAgentRequired) {
		t.Fatalf("expected ErrAgentRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "s1", "agent"); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if _, err := svc.CreateSession(ctx, "s1", "agent"); !errors.Is(err, chat.ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestServiceTranscriptKeepsOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, "s1", "agent"); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	for _, msg := range []model.Message{
		{SessionID: "s1", Source: "user", Content: "hello"},
		{SessionID: "s1", Source: "ai", Content: "hi, how are you feeling?"},
	} {
		if err := svc.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
	}

	if err := svc.SaveMessage(ctx, model.Message{SessionID: "s1", Source: "ai", Content: " "}); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := svc.SaveMessage(ctx, model.Message{SessionID: "other", Content: "x"}); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	transcript, err := svc.LoadTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 || transcript[0].Content != "hello" || transcript[1].Source != "ai" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
	if transcript[0].ID == "" || transcript[0].ID == transcript[1].ID {
		t.Fatalf("expected distinct message ids")
	}
	if transcript[0].CreatedAt.IsZero() {
		t.Fatalf("expected timestamp")
	}

	transcript[0].Content = "mutated"
	again, _ := svc.LoadTranscript(ctx, "s1")
	if again[0].Content != "hello" {
		t.Fatalf("transcript should be a copy")
	}
}

func TestServiceSetConversationID(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if err := svc.SetConversationID(ctx, "missing", "conv"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "s1", "agent"); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := svc.SetConversationID(ctx, "s1", "conv_9"); err != nil {
		t.Fatalf("SetConversationID err: %v", err)
	}
	got, _ := svc.GetSession(ctx, "s1")
	if got.ConversationID != "conv_9" {
		t.Fatalf("unexpected conversation id %q", got.ConversationID)
	}
}
