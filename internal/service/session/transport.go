package session

import (
	"context"

	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
)

// StartOptions is what the transport needs to open a session.
type StartOptions struct {
	SessionID string
	AgentID   string
	APIKey    string
}

// Transport is the vendor's managed voice client. Events must carry the
// SessionID passed to StartSession.
type Transport interface {
	StartSession(ctx context.Context, opts StartOptions) error
	EndSession(ctx context.Context) error
	SetVolume(ctx context.Context, volume float64) error
	Events() <-chan model.Event
}
