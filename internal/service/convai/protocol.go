package convai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Server message types of the ElevenLabs Conversational AI socket.
const (
	msgInitiationMetadata = "conversation_initiation_metadata"
	msgAudio              = "audio"
	msgUserTranscript     = "user_transcript"
	msgAgentResponse      = "agent_response"
	msgInterruption       = "interruption"
	msgPing               = "ping"
)

// Client message types.
const (
	msgInitiationClientData = "conversation_initiation_client_data"
	msgPong                 = "pong"
)

type initiationMetadata struct {
	ConversationID         string `json:"conversation_id"`
	AgentOutputAudioFormat string `json:"agent_output_audio_format"`
	UserInputAudioFormat   string `json:"user_input_audio_format"`
}

type audioEvent struct {
	AudioBase64 string `json:"audio_base_64"`
	EventID     int    `json:"event_id"`
}

type userTranscriptEvent struct {
	UserTranscript string `json:"user_transcript"`
}

type agentResponseEvent struct {
	AgentResponse string `json:"agent_response"`
}

type interruptionEvent struct {
	EventID int `json:"event_id"`
}

type pingEvent struct {
	EventID int `json:"event_id"`
	PingMs  int `json:"ping_ms"`
}

// serverMessage is the envelope for every inbound frame; only the field
// matching Type is populated.
type serverMessage struct {
	Type           string               `json:"type"`
	Metadata       *initiationMetadata  `json:"conversation_initiation_metadata_event,omitempty"`
	Audio          *audioEvent          `json:"audio_event,omitempty"`
	UserTranscript *userTranscriptEvent `json:"user_transcription_event,omitempty"`
	AgentResponse  *agentResponseEvent  `json:"agent_response_event,omitempty"`
	Interruption   *interruptionEvent   `json:"interruption_event,omitempty"`
	Ping           *pingEvent           `json:"ping_event,omitempty"`
}

type initiationClientData struct {
	Type string `json:"type"`
}

type pongMessage struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

func decodeServerMessage(data []byte) (serverMessage, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return serverMessage{}, fmt.Errorf("decode server message: %w", err)
	}
	if msg.Type == "" {
		return serverMessage{}, fmt.Errorf("server message missing type")
	}
	return msg, nil
}

func encodeAudioChunk(pcm []byte) userAudioChunk {
	return userAudioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(pcm)}
}

// parsePCMRate extracts the sample rate from formats such as "pcm_16000".
// ok is false for non-PCM formats.
func parsePCMRate(format string) (int, bool) {
	rest, found := strings.CutPrefix(strings.ToLower(strings.TrimSpace(format)), "pcm_")
	if !found {
		return 0, false
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}
