package convai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hopewhisperer/hope-whisperer/internal/audio"
	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session"
)

const (
	conversationPath = "/v1/convai/conversation"
	signedURLPath    = "/v1/convai/conversation/get_signed_url"
	apiKeyHeader     = "xi-api-key"

	eventBufferSize  = 256
	criticalSendWait = 5 * time.Second
	closeGrace       = 2 * time.Second
)

var (
	errAlreadyActive    = errors.New("conversation already active")
	errHandshakeTimeout = errors.New("conversation handshake timed out")
)

// Config locates the vendor endpoints and fixes the PCM rates.
type Config struct {
	APIBase          string
	WSBase           string
	InputSampleRate  int
	OutputSampleRate int
	Connection       ConnectionOptions
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the client used to fetch signed URLs.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d WebsocketDialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client implements session.Transport against the ElevenLabs
// Conversational AI socket. It runs at most one conversation at a time.
type Client struct {
	cfg        Config
	httpClient *http.Client
	dialer     WebsocketDialer
	devices    audio.Devices
	events     chan model.Event

	mu       sync.Mutex
	active   *conversation
	starting bool
	volume   float64
}

var _ session.Transport = (*Client)(nil)

// NewClient 创建对话客户端
func NewClient(cfg Config, devices audio.Devices, opts ...Option) *Client {
	defaults := DefaultConnectionOptions()
	if cfg.Connection.HandshakeTimeout <= 0 {
		cfg.Connection.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.Connection.WriteTimeout <= 0 {
		cfg.Connection.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.Connection.PingInterval <= 0 {
		cfg.Connection.PingInterval = defaults.PingInterval
	}
	if cfg.InputSampleRate <= 0 {
		cfg.InputSampleRate = 16000
	}
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = 16000
	}
	if devices == nil {
		devices = audio.NullDevices{}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Connection.HandshakeTimeout},
		dialer:     newDialer(cfg.Connection),
		devices:    devices,
		events:     make(chan model.Event, eventBufferSize),
		volume:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the stream consumed by the session adapter.
func (c *Client) Events() <-chan model.Event {
	return c.events
}

// StartSession opens the socket and the local audio streams. It returns
// once the socket is up; connect is reported as an event when the vendor
// sends the conversation metadata.
func (c *Client) StartSession(ctx context.Context, opts session.StartOptions) error {
	c.mu.Lock()
	if c.active != nil || c.starting {
		c.mu.Unlock()
		return errAlreadyActive
	}
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	target, err := c.conversationURL(ctx, opts)
	if err != nil {
		return err
	}

	log.Printf("[convai] dialing session=%s agent=%s signed=%t", opts.SessionID, opts.AgentID, opts.APIKey != "")
	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial conversation: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial conversation: %w", err)
	}

	speaker, err := c.devices.OpenSpeaker(c.cfg.OutputSampleRate)
	if err != nil {
		conn.Close()
		return fmt.Errorf("open speaker: %w", err)
	}

	conv := newConversation(opts.SessionID, conn, speaker, c.cfg)

	if err := conv.writeJSON(initiationClientData{Type: msgInitiationClientData}); err != nil {
		speaker.Close()
		conn.Close()
		return fmt.Errorf("send conversation initiation: %w", err)
	}

	mic, err := c.devices.OpenMicrophone(c.cfg.InputSampleRate, func(pcm []byte) {
		c.sendAudio(conv, pcm)
	})
	if err != nil {
		speaker.Close()
		conn.Close()
		return fmt.Errorf("open microphone: %w", err)
	}
	conv.mic = mic

	c.mu.Lock()
	speaker.SetVolume(c.volume)
	c.active = conv
	c.mu.Unlock()

	conv.handshakeTimer = time.AfterFunc(c.cfg.Connection.HandshakeTimeout, func() {
		if conv.ready.Load() {
			return
		}
		conv.fail(errHandshakeTimeout)
		conv.conn.Close()
	})

	go c.readLoop(conv)
	go pingLoop(conv, c.cfg.Connection.PingInterval, c.cfg.Connection.WriteTimeout)
	return nil
}

// EndSession closes the active conversation and waits for its terminal
// event to be emitted. Without an active conversation it is a no-op.
func (c *Client) EndSession(ctx context.Context) error {
	c.mu.Lock()
	conv := c.active
	c.mu.Unlock()
	if conv == nil {
		return nil
	}

	conv.endedLocally.Store(true)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conv.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(c.cfg.Connection.WriteTimeout)); err != nil {
		conv.conn.Close()
	}

	grace := time.NewTimer(closeGrace)
	defer grace.Stop()

	select {
	case <-conv.done:
		return nil
	case <-grace.C:
		conv.conn.Close()
	case <-ctx.Done():
		conv.conn.Close()
		return ctx.Err()
	}

	select {
	case <-conv.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetVolume sets the playback gain; it also applies to later conversations.
func (c *Client) SetVolume(_ context.Context, volume float64) error {
	c.mu.Lock()
	c.volume = volume
	conv := c.active
	c.mu.Unlock()

	if conv != nil {
		conv.speaker.SetVolume(volume)
	}
	return nil
}

func (c *Client) conversationURL(ctx context.Context, opts session.StartOptions) (string, error) {
	query := url.Values{"agent_id": {opts.AgentID}}
	if strings.TrimSpace(opts.APIKey) == "" {
		return c.cfg.WSBase + conversationPath + "?" + query.Encode(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+signedURLPath+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build signed url request: %w", err)
	}
	req.Header.Set(apiKeyHeader, opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("request signed url: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	if payload.SignedURL == "" {
		return "", errors.New("signed url response is empty")
	}
	return payload.SignedURL, nil
}

func (c *Client) readLoop(conv *conversation) {
	defer close(conv.done)

	for {
		_, data, err := conv.conn.ReadMessage()
		if err != nil {
			c.finish(conv, err)
			return
		}

		msg, err := decodeServerMessage(data)
		if err != nil {
			log.Printf("[convai] session=%s skip frame: %v", conv.sessionID, err)
			continue
		}
		c.dispatch(conv, msg)
	}
}

func (c *Client) dispatch(conv *conversation, msg serverMessage) {
	switch msg.Type {
	case msgInitiationMetadata:
		if msg.Metadata == nil || !conv.ready.CompareAndSwap(false, true) {
			return
		}
		conv.handshakeTimer.Stop()
		if rate, ok := parsePCMRate(msg.Metadata.AgentOutputAudioFormat); ok && rate != conv.outputRate {
			log.Printf("[convai] session=%s agent audio is %d Hz, speaker runs at %d Hz", conv.sessionID, rate, conv.outputRate)
		}
		log.Printf("[convai] session=%s connected conversation=%s", conv.sessionID, msg.Metadata.ConversationID)
		c.emit(model.Event{SessionID: conv.sessionID, Type: model.EventConnect}, true)
		c.emit(model.Event{
			SessionID:      conv.sessionID,
			Type:           model.EventMetadata,
			ConversationID: msg.Metadata.ConversationID,
		}, false)

	case msgAudio:
		if msg.Audio == nil || !conv.ready.Load() {
			return
		}
		if int64(msg.Audio.EventID) <= conv.lastInterrupt.Load() {
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(msg.Audio.AudioBase64)
		if err != nil {
			log.Printf("[convai] session=%s bad audio chunk: %v", conv.sessionID, err)
			return
		}
		if len(pcm) == 0 {
			return
		}
		conv.speaker.Write(pcm)
		c.extendSpeaking(conv, pcmDuration(len(pcm), conv.outputRate))

	case msgInterruption:
		if msg.Interruption == nil {
			return
		}
		c.interrupt(conv, msg.Interruption.EventID)

	case msgUserTranscript:
		if msg.UserTranscript == nil || strings.TrimSpace(msg.UserTranscript.UserTranscript) == "" {
			return
		}
		c.emitMessage(conv, model.SourceUser, msg.UserTranscript.UserTranscript)

	case msgAgentResponse:
		if msg.AgentResponse == nil || strings.TrimSpace(msg.AgentResponse.AgentResponse) == "" {
			return
		}
		c.emitMessage(conv, model.SourceAI, msg.AgentResponse.AgentResponse)

	case msgPing:
		if msg.Ping == nil {
			return
		}
		if err := conv.writeJSON(pongMessage{Type: msgPong, EventID: msg.Ping.EventID}); err != nil {
			log.Printf("[convai] session=%s pong failed: %v", conv.sessionID, err)
		}
	}
}

func (c *Client) emitMessage(conv *conversation, source model.Source, text string) {
	c.emit(model.Event{
		SessionID: conv.sessionID,
		Type:      model.EventMessage,
		Message:   model.Message{Source: source, Text: text},
	}, false)
}

func (c *Client) sendAudio(conv *conversation, pcm []byte) {
	if !conv.ready.Load() || conv.isClosed() {
		return
	}
	if err := conv.writeJSON(encodeAudioChunk(pcm)); err != nil {
		conv.micErrOnce.Do(func() {
			log.Printf("[convai] session=%s microphone upload failed: %v", conv.sessionID, err)
		})
	}
}

// extendSpeaking pushes the end of playback out by d and reports the agent
// as speaking until the queued audio has drained.
func (c *Client) extendSpeaking(conv *conversation, d time.Duration) {
	conv.stateMu.Lock()
	defer conv.stateMu.Unlock()
	if conv.closed {
		return
	}

	now := time.Now()
	if conv.playUntil.Before(now) {
		conv.playUntil = now
	}
	conv.playUntil = conv.playUntil.Add(d)

	if !conv.speaking {
		conv.speaking = true
		c.emit(model.Event{SessionID: conv.sessionID, Type: model.EventSpeaking, Speaking: true}, false)
	}

	wait := time.Until(conv.playUntil)
	if conv.drainTimer == nil {
		conv.drainTimer = time.AfterFunc(wait, func() { c.drained(conv) })
	} else {
		conv.drainTimer.Reset(wait)
	}
}

func (c *Client) drained(conv *conversation) {
	conv.stateMu.Lock()
	defer conv.stateMu.Unlock()
	if conv.closed || !conv.speaking {
		return
	}
	if remaining := time.Until(conv.playUntil); remaining > 0 {
		conv.drainTimer.Reset(remaining)
		return
	}
	conv.speaking = false
	c.emit(model.Event{SessionID: conv.sessionID, Type: model.EventSpeaking, Speaking: false}, true)
}

func (c *Client) interrupt(conv *conversation, eventID int) {
	conv.lastInterrupt.Store(int64(eventID))
	conv.speaker.Flush()

	conv.stateMu.Lock()
	defer conv.stateMu.Unlock()
	if conv.closed {
		return
	}
	conv.playUntil = time.Time{}
	if conv.drainTimer != nil {
		conv.drainTimer.Stop()
	}
	if conv.speaking {
		conv.speaking = false
		c.emit(model.Event{SessionID: conv.sessionID, Type: model.EventSpeaking, Speaking: false}, true)
	}
}

// finish releases the conversation and emits its single terminal event.
func (c *Client) finish(conv *conversation, readErr error) {
	conv.stateMu.Lock()
	conv.closed = true
	if conv.drainTimer != nil {
		conv.drainTimer.Stop()
	}
	failure := conv.failure
	conv.stateMu.Unlock()
	conv.handshakeTimer.Stop()

	if err := conv.mic.Close(); err != nil {
		log.Printf("[convai] session=%s close microphone: %v", conv.sessionID, err)
	}
	if err := conv.speaker.Close(); err != nil {
		log.Printf("[convai] session=%s close speaker: %v", conv.sessionID, err)
	}
	conv.conn.Close()

	c.mu.Lock()
	if c.active == conv {
		c.active = nil
	}
	c.mu.Unlock()

	ev := model.Event{SessionID: conv.sessionID}
	switch {
	case failure != nil:
		ev.Type = model.EventError
		ev.Err = failure
	case conv.endedLocally.Load() || isCleanClose(readErr):
		ev.Type = model.EventDisconnect
	default:
		ev.Type = model.EventError
		ev.Err = fmt.Errorf("conversation connection lost: %w", readErr)
	}
	log.Printf("[convai] session=%s closed: %s", conv.sessionID, ev.Type)
	c.emit(ev, true)
}

// emit never blocks for chatter; lifecycle events and the end of speech
// wait briefly for room.
func (c *Client) emit(ev model.Event, critical bool) {
	if !critical {
		select {
		case c.events <- ev:
		default:
			log.Printf("[convai] session=%s event buffer full, dropped %s", ev.SessionID, ev.Type)
		}
		return
	}

	timer := time.NewTimer(criticalSendWait)
	defer timer.Stop()
	select {
	case c.events <- ev:
	case <-timer.C:
		log.Printf("[convai] session=%s no consumer, dropped %s", ev.SessionID, ev.Type)
	}
}

// conversation is the per-session socket state.
type conversation struct {
	sessionID    string
	conn         *websocket.Conn
	speaker      audio.Speaker
	mic          io.Closer
	outputRate   int
	writeTimeout time.Duration

	writeMu sync.Mutex
	done    chan struct{}

	ready          atomic.Bool
	endedLocally   atomic.Bool
	lastInterrupt  atomic.Int64
	micErrOnce     sync.Once
	handshakeTimer *time.Timer

	stateMu    sync.Mutex
	closed     bool
	failure    error
	speaking   bool
	playUntil  time.Time
	drainTimer *time.Timer
}

func newConversation(sessionID string, conn *websocket.Conn, speaker audio.Speaker, cfg Config) *conversation {
	conv := &conversation{
		sessionID:    sessionID,
		conn:         conn,
		speaker:      speaker,
		outputRate:   cfg.OutputSampleRate,
		writeTimeout: cfg.Connection.WriteTimeout,
		done:         make(chan struct{}),
	}
	conv.lastInterrupt.Store(-1)
	return conv
}

func (conv *conversation) writeJSON(v any) error {
	conv.writeMu.Lock()
	defer conv.writeMu.Unlock()
	_ = conv.conn.SetWriteDeadline(time.Now().Add(conv.writeTimeout))
	return conv.conn.WriteJSON(v)
}

func (conv *conversation) fail(err error) {
	conv.stateMu.Lock()
	if conv.failure == nil {
		conv.failure = err
	}
	conv.stateMu.Unlock()
}

func (conv *conversation) isClosed() bool {
	select {
	case <-conv.done:
		return true
	default:
	}
	conv.stateMu.Lock()
	defer conv.stateMu.Unlock()
	return conv.closed
}

func pcmDuration(bytes, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(bytes/2) * time.Second / time.Duration(sampleRate)
}
