// Package usecase holds shared plumbing for the command and query
// handlers registered on the mediator.
package usecase

import (
	"context"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence"
)

// Events stages event publishes inside a transaction scope and
// performs the direct publish after commit. The staged outbox entry
// shares the envelope's ID, so a relay replay of an unconfirmed entry
// is deduplicated downstream.
type Events struct {
	bus     bus.Bus
	confirm outbox.Repository
}

// NewEvents creates the publisher. confirm is a repository outside any
// transaction, used to mark entries sent after a successful publish.
func NewEvents(b bus.Bus, confirm outbox.Repository) *Events {
	return &Events{bus: b, confirm: confirm}
}

// Stage records the intent to publish payload on topic inside scope's
// transaction and returns the envelope to publish after commit.
func (e *Events) Stage(ctx context.Context, scope persistence.Scope, topic string, payload any) (bus.Envelope, *core.UseCaseError) {
	env, err := bus.NewEnvelope(topic, payload)
	if err != nil {
		return bus.Envelope{}, core.UnexpectedError("encode event for %s: %s", topic, err.Error())
	}
	if err := scope.Outbox().Add(ctx, outbox.FromEnvelope(env)); err != nil {
		return bus.Envelope{}, core.UnexpectedError("stage event for %s: %s", topic, err.Error())
	}
	return env, nil
}

// Publish sends previously staged envelopes and confirms them. A
// failed publish is reported to the caller; the relay heals it later
// from the still-pending outbox entry.
func (e *Events) Publish(ctx context.Context, envs ...bus.Envelope) *core.UseCaseError {
	var confirmed []string
	for _, env := range envs {
		if res := e.bus.PublishEnvelope(ctx, env); res.IsErr() {
			outbox.ConfirmPublished(ctx, e.confirm, confirmed...)
			return res.Error()
		}
		confirmed = append(confirmed, env.ID)
	}
	outbox.ConfirmPublished(ctx, e.confirm, confirmed...)
	return nil
}
