// Package chat tracks multi-turn conversations in memory and drives the
// answering step for each turn.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ltnguyen/askdocs/internal/retrieval"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

const (
	sourcePreviewLimit = 500

	degradedMessage = "Sorry, something went wrong while processing your question. Please try again."
)

// Answerer produces an answer and its supporting chunks for a question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, []retrieval.Result, error)
}

// Store keeps conversations in memory. Histories do not survive restarts.
type Store struct {
	answerer Answerer
	logger   *slog.Logger

	mu            sync.Mutex
	conversations map[string]*Conversation
}

func NewStore(answerer Answerer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		answerer:      answerer,
		logger:        logger,
		conversations: make(map[string]*Conversation),
	}
}

func newConversationID() string {
	return "conv_" + uuid.NewString()[:8]
}

// Chat records the user message, runs the answerer, records the assistant
// message, and returns the turn's response. conversationID may be empty, in
// which case a new conversation is created. A failure in the answering step
// yields a degraded response, never an error; both turn messages are still
// recorded.
func (s *Store) Chat(ctx context.Context, message, conversationID string, includeSources bool) (Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Response{}, errors.New("message is empty")
	}

	start := time.Now()

	if conversationID == "" {
		conversationID = newConversationID()
	}
	s.appendMessage(conversationID, Message{Role: "user", Content: message, Timestamp: time.Now()})

	answer, results, err := s.answerer.Answer(ctx, message)
	if err != nil {
		s.logger.Error("chat turn failed", "conversation_id", conversationID, "error", err)
		s.appendMessage(conversationID, Message{Role: "assistant", Content: degradedMessage, Timestamp: time.Now()})
		return Response{
			Message:        degradedMessage,
			ConversationID: conversationID,
			ProcessingTime: 0,
			Timestamp:      time.Now(),
			Degraded:       true,
			DegradedReason: err.Error(),
		}, nil
	}

	s.appendMessage(conversationID, Message{Role: "assistant", Content: answer, Timestamp: time.Now()})

	var sources []Source
	if includeSources && len(results) > 0 {
		sources = make([]Source, 0, len(results))
		for _, r := range results {
			sources = append(sources, Source{
				Content:  previewText(r.Content),
				Source:   r.Source,
				Metadata: r.Metadata,
			})
		}
	}

	s.logger.Info("chat turn completed", "conversation_id", conversationID, "sources", len(results))

	return Response{
		Message:        answer,
		ConversationID: conversationID,
		Sources:        sources,
		ProcessingTime: time.Since(start).Seconds(),
		Timestamp:      time.Now(),
	}, nil
}

// appendMessage adds a message to the conversation, creating it on first use.
func (s *Store) appendMessage(conversationID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		now := time.Now()
		conv = &Conversation{ID: conversationID, CreatedAt: now}
		s.conversations[conversationID] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp
}

// Get returns a copy of the conversation, or false when the id is unknown.
func (s *Store) Get(conversationID string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return copyConversation(conv), true
}

// List returns copies of all conversations, most recently updated first.
func (s *Store) List() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, copyConversation(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Delete removes a conversation. Returns ErrNotFound for unknown ids.
func (s *Store) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, conversationID)
	return nil
}

// Clear removes every conversation and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.conversations)
	s.conversations = make(map[string]*Conversation)
	return n
}

// Stats reports totals and the average number of messages per conversation,
// rounded to two decimals.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, conv := range s.conversations {
		total += len(conv.Messages)
	}

	st := Stats{
		TotalConversations: len(s.conversations),
		TotalMessages:      total,
	}
	if st.TotalConversations > 0 {
		avg := float64(total) / float64(st.TotalConversations)
		st.AverageMessages = math.Round(avg*100) / 100
	}
	return st
}

func copyConversation(conv *Conversation) Conversation {
	out := *conv
	out.Messages = make([]Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out
}

func previewText(text string) string {
	if len(text) <= sourcePreviewLimit {
		return text
	}
	return text[:sourcePreviewLimit] + "..."
}
