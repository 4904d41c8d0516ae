package domain

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single conversation turn
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user, assistant
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources,omitempty"` // assistant messages only
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is an ordered, append-only sequence of user/assistant turns
type Conversation struct {
	ID        string     `json:"id"`
	Messages  []*Message `json:"messages,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ConversationSummary is the listing projection of a conversation
type ConversationSummary struct {
	ID           string    `json:"conversation_id"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatRequest is a stateful multi-turn query
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the answer to a chat message
type ChatResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversation_id"`
	Model          string   `json:"model"`
}

// ConversationListResponse is the response for listing conversations
type ConversationListResponse struct {
	Conversations []*ConversationSummary `json:"conversations"`
	Count         int                    `json:"count"`
}
