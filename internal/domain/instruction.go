package domain

import (
	"time"

	"go.botmind.dev/internal/tsid"
)

// SystemInstruction is the persona prompt attached to generation calls
// for one AI provider. At most one instruction is active per provider;
// activation flips are guarded by the Version field since two operators
// may edit concurrently.
type SystemInstruction struct {
	ID          string    `bson:"_id" json:"id"`
	Provider    string    `bson:"provider" json:"provider"`
	Instruction string    `bson:"instruction" json:"instruction"`
	Active      bool      `bson:"active" json:"active"`
	Version     int64     `bson:"version" json:"version"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewSystemInstruction creates an inactive instruction at version 1.
func NewSystemInstruction(provider, instruction string) *SystemInstruction {
	return &SystemInstruction{
		ID:          tsid.Generate(),
		Provider:    provider,
		Instruction: instruction,
		Version:     1,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Activate marks the instruction active. The caller persists the change
// through a version-checked update.
func (s *SystemInstruction) Activate(now time.Time) {
	s.Active = true
	s.UpdatedAt = now
}

// Deactivate marks the instruction inactive.
func (s *SystemInstruction) Deactivate(now time.Time) {
	s.Active = false
	s.UpdatedAt = now
}
