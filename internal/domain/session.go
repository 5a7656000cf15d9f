package domain

import (
	"time"

	"go.botmind.dev/internal/tsid"
)

// SessionState is the lifecycle state of an interactive session.
type SessionState string

const (
	SessionActive SessionState = "ACTIVE"
	SessionClosed SessionState = "CLOSED"
)

// Session groups one continuous interaction with the bot.
type Session struct {
	ID        string       `bson:"_id" json:"id"`
	State     SessionState `bson:"state" json:"state"`
	StartedAt time.Time    `bson:"startedAt" json:"startedAt"`
	ClosedAt  time.Time    `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	Version   int64        `bson:"version" json:"version"`
}

// NewSession creates an active session.
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        tsid.Generate(),
		State:     SessionActive,
		StartedAt: now,
		Version:   1,
	}
}

// Close transitions the session to CLOSED. Closing twice is a no-op.
func (s *Session) Close(now time.Time) {
	if s.State == SessionClosed {
		return
	}
	s.State = SessionClosed
	s.ClosedAt = now
}
