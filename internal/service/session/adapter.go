package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
)

// PermissionGate is the subset of permission.Gate the adapter needs.
type PermissionGate interface {
	Granted() bool
	Request(ctx context.Context) permission.State
}

// StartRequest is the input to Start.
type StartRequest struct {
	AgentID string
	APIKey  string
}

// UpdateKind classifies adapter notifications.
type UpdateKind string

const (
	UpdateStatus   UpdateKind = "status"
	UpdateSpeaking UpdateKind = "speaking"
	UpdateMessage  UpdateKind = "message"
	UpdateError    UpdateKind = "error"
	UpdateMetadata UpdateKind = "metadata"
)

// Update is published to subscribers after every state change.
type Update struct {
	Kind           UpdateKind
	SessionID      string
	Status         model.Status
	Speaking       bool
	Message        model.Message
	Err            error
	ConversationID string
}

const updateBuffer = 128

// Adapter owns the Session Status for a single transport. Status only moves
// along disconnected -> connecting -> connected -> disconnected (or
// connecting -> disconnected).
type Adapter struct {
	transport Transport
	gate      PermissionGate
	newID     func() string

	mu             sync.Mutex
	status         model.Status
	speaking       bool
	sessionID      string
	conversationID string
	// settled is non-nil while a StartSession call is in flight.
	settled   chan struct{}
	cancelled bool

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

// NewAdapter wires a transport and a permission gate.
func NewAdapter(transport Transport, gate PermissionGate) *Adapter {
	return &Adapter{
		transport: transport,
		gate:      gate,
		newID:     func() string { return ulid.Make().String() },
		status:    model.StatusDisconnected,
		subs:      make(map[int]chan Update),
	}
}

// Status returns the current session status.
func (a *Adapter) Status() model.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Speaking reports whether the agent is currently talking.
func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// SessionID returns the id of the latest Start attempt.
func (a *Adapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// ConversationID returns the vendor conversation id, once announced.
func (a *Adapter) ConversationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationID
}

// Start opens a session. It returns once the transport accepted the
// request; the connected status arrives later as an event.
func (a *Adapter) Start(ctx context.Context, req StartRequest) error {
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		return fmt.Errorf("%w: agent id is required", ErrConfiguration)
	}
	if err := a.ensureIdle(); err != nil {
		return err
	}

	if !a.gate.Granted() {
		if a.gate.Request(ctx) != permission.Granted {
			return &PermissionError{}
		}
	}

	a.mu.Lock()
	if a.status != model.StatusDisconnected || a.settled != nil {
		a.mu.Unlock()
		return ErrSessionActive
	}
	id := a.newID()
	settled := make(chan struct{})
	a.sessionID = id
	a.conversationID = ""
	a.cancelled = false
	a.settled = settled
	a.setStatusLocked(model.StatusConnecting)
	a.mu.Unlock()

	log.Printf("[session] starting session=%s agent=%s", id, agentID)
	err := a.transport.StartSession(ctx, StartOptions{
		SessionID: id,
		AgentID:   agentID,
		APIKey:    req.APIKey,
	})

	a.mu.Lock()
	cancelled := a.cancelled
	a.settled = nil
	if err != nil {
		if a.sessionID == id && a.status == model.StatusConnecting {
			a.setStatusLocked(model.StatusDisconnected)
		}
		a.mu.Unlock()
		close(settled)
		log.Printf("[session] start failed session=%s: %v", id, err)
		return &ConnectionError{Cause: err}
	}
	a.mu.Unlock()

	if cancelled {
		log.Printf("[session] session=%s ended while connecting, tearing down", id)
		a.teardown(context.WithoutCancel(ctx))
		close(settled)
		return ErrStartCancelled
	}

	close(settled)
	return nil
}

func (a *Adapter) ensureIdle() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != model.StatusDisconnected || a.settled != nil {
		return ErrSessionActive
	}
	return nil
}

// End tears down the active session. It never fails: teardown errors are
// logged and the status is disconnected afterwards.
func (a *Adapter) End(ctx context.Context) {
	a.mu.Lock()
	switch a.status {
	case model.StatusDisconnected:
		a.mu.Unlock()
		return
	case model.StatusConnecting:
		settled := a.settled
		a.cancelled = true
		a.setStatusLocked(model.StatusDisconnected)
		a.mu.Unlock()

		if settled == nil {
			// StartSession already returned; only the connect event is pending.
			a.teardown(ctx)
			return
		}
		select {
		case <-settled:
		case <-ctx.Done():
			log.Printf("[session] gave up waiting for in-flight start: %v", ctx.Err())
		}
	default:
		a.setStatusLocked(model.StatusDisconnected)
		a.mu.Unlock()
		a.teardown(ctx)
	}
}

func (a *Adapter) teardown(ctx context.Context) {
	if err := a.transport.EndSession(ctx); err != nil {
		log.Printf("[session] end session failed: %v", err)
	}
}

// SetVolume forwards level, clamped to [0,1], while connected. It is a
// no-op in any other status.
func (a *Adapter) SetVolume(ctx context.Context, level float64) error {
	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}

	if a.Status() != model.StatusConnected {
		return nil
	}
	if err := a.transport.SetVolume(ctx, level); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// Run consumes transport events one at a time until ctx is done or the
// event channel closes.
func (a *Adapter) Run(ctx context.Context) error {
	events := a.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.handle(ev)
		}
	}
}

func (a *Adapter) handle(ev model.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == model.StatusDisconnected || ev.SessionID != a.sessionID {
		return
	}

	switch ev.Type {
	case model.EventConnect:
		if a.status == model.StatusConnecting {
			a.setStatusLocked(model.StatusConnected)
		}
	case model.EventDisconnect:
		a.setStatusLocked(model.StatusDisconnected)
	case model.EventError:
		// The error goes out first so subscribers can tell a failure from
		// an orderly disconnect when the status update follows.
		log.Printf("[session] session=%s error: %v", a.sessionID, ev.Err)
		a.publish(Update{Kind: UpdateError, SessionID: a.sessionID, Status: model.StatusDisconnected, Err: ev.Err})
		a.setStatusLocked(model.StatusDisconnected)
	case model.EventMessage:
		log.Printf("[session] message session=%s source=%s: %s", a.sessionID, ev.Message.Source, ev.Message.Text)
		a.publish(Update{Kind: UpdateMessage, SessionID: a.sessionID, Status: a.status, Message: ev.Message})
	case model.EventSpeaking:
		if a.status != model.StatusConnected || a.speaking == ev.Speaking {
			return
		}
		a.speaking = ev.Speaking
		a.publish(Update{Kind: UpdateSpeaking, SessionID: a.sessionID, Status: a.status, Speaking: a.speaking})
	case model.EventMetadata:
		a.conversationID = ev.ConversationID
		a.publish(Update{Kind: UpdateMetadata, SessionID: a.sessionID, Status: a.status, ConversationID: ev.ConversationID})
	default:
		log.Printf("[session] ignoring unknown event type %q", ev.Type)
	}
}

func (a *Adapter) setStatusLocked(status model.Status) {
	if a.status == status {
		return
	}
	a.status = status
	if status != model.StatusConnected {
		a.speaking = false
	}
	log.Printf("[session] session=%s status=%s", a.sessionID, status)
	a.publish(Update{Kind: UpdateStatus, SessionID: a.sessionID, Status: status})
}

// Subscribe returns a channel of updates and a func that unsubscribes.
func (a *Adapter) Subscribe() (<-chan Update, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan Update, updateBuffer)
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, id)
			a.subMu.Unlock()
			close(ch)
		})
	}
}

func (a *Adapter) publish(update Update) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- update:
		default:
			log.Printf("[session] subscriber lagging, dropped %s update", update.Kind)
		}
	}
}
