package chat

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the running context of a chat.
type Conversation struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	// History is append-only and never reordered.
	History []Message `json:"history"`
	// Focus is the id of the task the conversation last referred to, or "".
	Focus     string    `json:"focus,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrConversationNotFound is returned by stores for unknown ids.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore owns conversation histories. Writes are serialized per conversation.
type ConversationStore interface {
	Create(ctx context.Context, owner string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	Append(ctx context.Context, id string, messages ...Message) error
	SetFocus(ctx context.Context, id, taskID string) error
	Close() error
}
