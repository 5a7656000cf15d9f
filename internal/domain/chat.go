// Package domain holds the aggregates shared by the bot and worker
// processes. Aggregates are plain values; all persistence goes through
// a unit of work scope, and aggregates that can be edited concurrently
// carry an integer version for optimistic locking.
package domain

import (
	"time"

	"go.botmind.dev/internal/tsid"
)

// ChatRole identifies the author side of a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "USER"
	RoleModel ChatRole = "MODEL"
)

// Valid reports whether the role is one of the known values.
func (r ChatRole) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// ChatMessage is one turn of the conversation history.
type ChatMessage struct {
	ID      string    `bson:"_id" json:"id"`
	Role    ChatRole  `bson:"role" json:"role"`
	Content string    `bson:"content" json:"content"`
	SentAt  time.Time `bson:"sentAt" json:"sentAt"`
}

// NewUserMessage creates a message authored by the user.
func NewUserMessage(content string, sentAt time.Time) *ChatMessage {
	return &ChatMessage{
		ID:      tsid.Generate(),
		Role:    RoleUser,
		Content: content,
		SentAt:  sentAt,
	}
}

// NewModelMessage creates a message authored by the model.
func NewModelMessage(content string, sentAt time.Time) *ChatMessage {
	return &ChatMessage{
		ID:      tsid.Generate(),
		Role:    RoleModel,
		Content: content,
		SentAt:  sentAt,
	}
}
