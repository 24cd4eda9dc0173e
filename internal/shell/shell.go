// Package shell holds the view model both front ends render: which screen
// is up, the mirrored session state, and the notice queue.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hopewhisperer/hope-whisperer/internal/model/chat"
	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session"
)

var ErrNoticeNotFound = errors.New("notice not found")

// Mode selects the screen.
type Mode string

const (
	ModeSetup        Mode = "setup"
	ModeConversation Mode = "conversation"
)

// View is everything a front end needs to render.
type View struct {
	Mode              Mode         `json:"mode"`
	Status            model.Status `json:"status"`
	Speaking          bool         `json:"speaking"`
	PermissionGranted bool         `json:"permissionGranted"`
	AgentID           string       `json:"agentId"`
	Volume            float64      `json:"volume"`
	CanStart          bool         `json:"canStart"`
	SessionID         string       `json:"sessionId,omitempty"`
	ConversationID    string       `json:"conversationId,omitempty"`
	Notices           []Notice     `json:"notices"`
	Disclaimer        []string     `json:"disclaimer"`
}

type CredentialStore interface {
	Load(ctx context.Context) (string, bool)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context)
}

type PermissionGate interface {
	Check(ctx context.Context) permission.State
	Request(ctx context.Context) permission.State
	Granted() bool
}

type SessionAdapter interface {
	Start(ctx context.Context, req session.StartRequest) error
	End(ctx context.Context)
	SetVolume(ctx context.Context, level float64) error
	Status() model.Status
	Speaking() bool
	SessionID() string
	ConversationID() string
	Subscribe() (<-chan session.Update, func())
}

type TranscriptLog interface {
	CreateSession(ctx context.Context, sessionID, agentID string) (chat.Session, error)
	SetConversationID(ctx context.Context, sessionID, conversationID string) error
	SaveMessage(ctx context.Context, message chat.Message) error
}

// Shell is the only mutator the front ends use.
type Shell struct {
	store       CredentialStore
	gate        PermissionGate
	adapter     SessionAdapter
	transcripts TranscriptLog

	// updates is subscribed in New so nothing published before Run starts
	// is lost.
	updates     <-chan session.Update
	unsubscribe func()

	mu         sync.Mutex
	starting   int
	credential string
	agentID    string
	volume     float64
	notices    []Notice
	lastStatus model.Status
	failedID   string

	subMu   sync.Mutex
	subs    map[int]chan View
	nextSub int
}

// New wires a shell. defaultVolume seeds the volume slider.
func New(store CredentialStore, gate PermissionGate, adapter SessionAdapter, transcripts TranscriptLog, defaultVolume float64) *Shell {
	updates, unsubscribe := adapter.Subscribe()
	return &Shell{
		store:       store,
		gate:        gate,
		adapter:     adapter,
		transcripts: transcripts,
		updates:     updates,
		unsubscribe: unsubscribe,
		volume:      clampVolume(defaultVolume),
		lastStatus:  model.StatusDisconnected,
		subs:        make(map[int]chan View),
	}
}

// Init loads the credential and checks microphone access.
func (s *Shell) Init(ctx context.Context) {
	credential, ok := s.store.Load(ctx)
	s.mu.Lock()
	if ok {
		s.credential = credential
	}
	s.mu.Unlock()

	state := s.gate.Check(ctx)
	log.Printf("[shell] init credential=%t permission=%s", ok, state)
	s.broadcast()
}

// SubmitCredential saves the api key and opens the conversation screen.
func (s *Shell) SubmitCredential(ctx context.Context, raw string) error {
	credential := strings.TrimSpace(raw)
	if credential == "" {
		return fmt.Errorf("%w: api key is required", session.ErrConfiguration)
	}
	if err := s.store.Save(ctx, credential); err != nil {
		return fmt.Errorf("%w: %v", session.ErrConfiguration, err)
	}

	s.mu.Lock()
	s.credential = credential
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// ResetCredential ends any session, forgets the api key and returns to setup.
func (s *Shell) ResetCredential(ctx context.Context) {
	s.adapter.End(ctx)
	s.store.Clear(ctx)

	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()
	s.broadcast()
}

// RequestPermission re-probes the microphone and reports the outcome.
func (s *Shell) RequestPermission(ctx context.Context) permission.State {
	state := s.gate.Request(ctx)
	if state == permission.Granted {
		s.notify(noticePermissionGranted)
	} else {
		s.notify(noticePermissionRequired)
	}
	s.broadcast()
	return state
}

// SetAgentID changes the agent; only allowed without a session and while
// no start is in flight.
func (s *Shell) SetAgentID(agentID string) error {
	s.mu.Lock()
	if s.starting > 0 || s.adapter.Status() != model.StatusDisconnected {
		s.mu.Unlock()
		return session.ErrSessionActive
	}
	s.agentID = strings.TrimSpace(agentID)
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// SetVolume stores the level and pushes it to a connected session.
func (s *Shell) SetVolume(ctx context.Context, volume float64) error {
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return fmt.Errorf("%w: volume must be within [0,1]", session.ErrConfiguration)
	}

	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()

	err := s.adapter.SetVolume(ctx, volume)
	s.broadcast()
	return err
}

// StartConversation asks the adapter for a session with the current agent.
// Failures become notices and are returned as well.
func (s *Shell) StartConversation(ctx context.Context) error {
	s.mu.Lock()
	req := session.StartRequest{AgentID: s.agentID, APIKey: s.credential}
	s.starting++
	s.mu.Unlock()

	grantedBefore := s.gate.Granted()
	err := s.adapter.Start(ctx, req)

	s.mu.Lock()
	s.starting--
	s.mu.Unlock()
	if !grantedBefore && s.gate.Granted() {
		s.notify(noticePermissionGranted)
	}

	switch {
	case err == nil:
	case errors.Is(err, session.ErrPermission):
		s.notify(noticePermissionRequired)
	case errors.Is(err, session.ErrConfiguration):
		s.notify(noticeAgentRequired)
	case errors.Is(err, session.ErrConnection):
		log.Printf("[shell] start failed: %v", err)
		s.notify(noticeConnectionFailed)
	}
	s.broadcast()
	return err
}

// EndConversation tears down the session. It never fails.
func (s *Shell) EndConversation(ctx context.Context) {
	s.adapter.End(ctx)
	s.broadcast()
}

// DismissNotice removes a notice by id.
func (s *Shell) DismissNotice(id string) error {
	s.mu.Lock()
	idx := -1
	for i, n := range s.notices {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNoticeNotFound
	}
	s.notices = append(s.notices[:idx], s.notices[idx+1:]...)
	s.mu.Unlock()

	s.broadcast()
	return nil
}

// View returns the current view.
func (s *Shell) View() View {
	status := s.adapter.Status()
	granted := s.gate.Granted()

	s.mu.Lock()
	defer s.mu.Unlock()

	mode := ModeSetup
	if s.credential != "" {
		mode = ModeConversation
	}
	notices := make([]Notice, len(s.notices))
	copy(notices, s.notices)

	return View{
		Mode:              mode,
		Status:            status,
		Speaking:          s.adapter.Speaking(),
		PermissionGranted: granted,
		AgentID:           s.agentID,
		Volume:            s.volume,
		CanStart:          granted && s.agentID != "" && status == model.StatusDisconnected,
		SessionID:         s.adapter.SessionID(),
		ConversationID:    s.adapter.ConversationID(),
		Notices:           notices,
		Disclaimer:        append([]string(nil), Disclaimer...),
	}
}

// Run mirrors adapter updates into notices and the transcript log until
// ctx is done. Updates published since New are buffered, so Run may start
// after a session. Call it once; the subscription is released on return.
func (s *Shell) Run(ctx context.Context) error {
	defer s.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-s.updates:
			if !ok {
				return nil
			}
			s.apply(ctx, u)
			s.broadcast()
		}
	}
}

func (s *Shell) apply(ctx context.Context, u session.Update) {
	switch u.Kind {
	case session.UpdateStatus:
		s.mu.Lock()
		previous := s.lastStatus
		s.lastStatus = u.Status
		agentID, volume, failed := s.agentID, s.volume, s.failedID == u.SessionID
		s.mu.Unlock()

		switch u.Status {
		case model.StatusConnecting:
			if _, err := s.transcripts.CreateSession(ctx, u.SessionID, agentID); err != nil {
				log.Printf("[shell] record session=%s: %v", u.SessionID, err)
			}
		case model.StatusConnected:
			s.notify(noticeConnected)
			if err := s.adapter.SetVolume(ctx, volume); err != nil {
				log.Printf("[shell] apply volume: %v", err)
			}
		case model.StatusDisconnected:
			if previous == model.StatusConnected && !failed {
				s.notify(noticeDisconnected)
			}
		}

	case session.UpdateError:
		log.Printf("[shell] session=%s error: %v", u.SessionID, u.Err)
		s.mu.Lock()
		s.failedID = u.SessionID
		s.mu.Unlock()
		s.notify(noticeConnectionIssue)

	case session.UpdateMessage:
		err := s.transcripts.SaveMessage(ctx, chat.Message{
			SessionID: u.SessionID,
			Source:    string(u.Message.Source),
			Content:   u.Message.Text,
		})
		if err != nil {
			log.Printf("[shell] record message session=%s: %v", u.SessionID, err)
		}

	case session.UpdateMetadata:
		if err := s.transcripts.SetConversationID(ctx, u.SessionID, u.ConversationID); err != nil {
			log.Printf("[shell] record conversation id session=%s: %v", u.SessionID, err)
		}
	}
}

func (s *Shell) notify(text noticeText) {
	notice := Notice{
		ID:          uuid.NewString(),
		Kind:        text.kind,
		Title:       text.title,
		Description: text.description,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.notices = append(s.notices, notice)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.mu.Unlock()
}

// Subscribe returns a feed of views and a func that unsubscribes. Slow
// readers only ever see the latest view.
func (s *Shell) Subscribe() (<-chan View, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan View, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Shell) broadcast() {
	view := s.View()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
