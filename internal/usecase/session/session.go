// Package session implements interaction session management.
package session

import (
	"context"
	"time"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/persistence"
)

// CreateSessionCommand opens a new interaction session.
type CreateSessionCommand struct{}

// CreateSessionResult carries the new session's ID.
type CreateSessionResult struct {
	ID string
}

// CloseSessionCommand closes an open session.
type CloseSessionCommand struct {
	ID string
}

// Handlers bundles the session use case handlers.
type Handlers struct {
	uow persistence.UnitOfWork
}

// NewHandlers creates the session handlers.
func NewHandlers(uow persistence.UnitOfWork) *Handlers {
	return &Handlers{uow: uow}
}

// Register binds the handlers on the mediator builder.
func (h *Handlers) Register(b *core.MediatorBuilder) {
	core.Register(b, h.CreateSession)
	core.Register(b, h.CloseSession)
}

// CreateSession creates and persists a new active session.
func (h *Handlers) CreateSession(ctx context.Context, cmd CreateSessionCommand) core.Result[CreateSessionResult] {
	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[CreateSessionResult](uerr)
	}
	defer scope.Close(ctx)

	sess := domain.NewSession(time.Now().UTC())
	if err := scope.Sessions().Add(ctx, sess); err != nil {
		return core.Err[CreateSessionResult](persistence.MapError(err))
	}
	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[CreateSessionResult](res.Error())
	}
	return core.Ok(CreateSessionResult{ID: sess.ID})
}

// CloseSession closes an open session with a version-checked update.
func (h *Handlers) CloseSession(ctx context.Context, cmd CloseSessionCommand) core.Result[core.Unit] {
	if cmd.ID == "" {
		return core.Err[core.Unit](core.ValidationError("session id is required"))
	}

	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[core.Unit](uerr)
	}
	defer scope.Close(ctx)

	sess, err := scope.Sessions().Get(ctx, cmd.ID)
	if err != nil {
		return core.Err[core.Unit](persistence.MapError(err))
	}
	sess.Close(time.Now().UTC())
	if err := scope.Sessions().Update(ctx, sess); err != nil {
		return core.Err[core.Unit](persistence.MapError(err))
	}
	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[core.Unit](res.Error())
	}
	return core.Ok(core.Unit{})
}
