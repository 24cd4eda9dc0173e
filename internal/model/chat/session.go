package chat

import "time"

// Session captures one voice conversation with an agent.
type Session struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agentId"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
