package chat

import "time"

// Message is a single turn in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the recorded history of one chat session.
type Conversation struct {
	ID        string    `json:"conversation_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source is a retrieved chunk attached to a chat response. Content is a
// preview truncated to 500 characters.
type Source struct {
	Content  string         `json:"content"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is the outcome of one chat turn. When the answering step fails the
// response is degraded rather than an error: Message carries a fixed apology,
// Degraded is set and DegradedReason names the cause.
type Response struct {
	Message        string    `json:"message"`
	ConversationID string    `json:"conversation_id"`
	Sources        []Source  `json:"sources,omitempty"`
	ProcessingTime float64   `json:"processing_time"`
	Timestamp      time.Time `json:"timestamp"`
	Degraded       bool      `json:"degraded,omitempty"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalConversations int     `json:"total_conversations"`
	TotalMessages      int     `json:"total_messages"`
	AverageMessages    float64 `json:"average_messages_per_conversation"`
}
