// Package persistence defines the unit-of-work boundary and the
// repository contracts scoped to it. A Scope owns exactly one
// transaction; it is committed or rolled back exactly once before
// control returns to the caller that opened it, and is never shared
// across concurrent operations.
package persistence

import (
	"context"
	"errors"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/outbox"
)

// Sentinel errors returned by repositories. Infrastructure code wraps
// driver errors into these; MapError converts them to UseCaseErrors at
// the handler boundary.
var (
	// ErrNotFound indicates the requested aggregate does not exist.
	ErrNotFound = errors.New("aggregate not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrOptimisticLock indicates a concurrent modification conflict:
	// the aggregate's version no longer matches the version read.
	ErrOptimisticLock = errors.New("optimistic lock failed")
)

// UnitOfWork opens transaction scopes against the persistence backend.
type UnitOfWork interface {
	// Begin opens a transaction. Fails with UNEXPECTED when a
	// connection cannot be acquired.
	Begin(ctx context.Context) (Scope, *core.UseCaseError)
}

// Scope is one open transaction with repository accessors bound to it.
// Repositories obtained from the same scope share identity-map state:
// two reads of the same aggregate return the same in-memory instance.
//
// Callers must guarantee release on every exit path:
//
//	scope, uerr := uow.Begin(ctx)
//	if uerr != nil { ... }
//	defer scope.Close(ctx)
//	// reads and writes
//	if res := scope.Commit(ctx); res.IsErr() { ... }
//
// Close rolls back when the scope is still open and is a no-op after
// Commit, so commit-count + rollback-count == 1 for every scope.
// Committing twice, or after a rollback, is a fatal programming error.
type Scope interface {
	ChatHistory() ChatHistoryRepository
	Instructions() InstructionRepository
	Sessions() SessionRepository

	// Outbox stages event publishes inside the transaction, so a
	// committed state change always has a pending outbox entry until
	// the publish is confirmed.
	Outbox() outbox.Repository

	// Commit flushes all writes atomically and closes the scope. A
	// detected write-write conflict yields CONCURRENCY_CONFLICT; any
	// other failure yields UNEXPECTED. The scope is closed regardless
	// of outcome.
	Commit(ctx context.Context) core.Result[core.Unit]

	// Rollback discards all writes. Idempotent.
	Rollback(ctx context.Context)

	// Close releases the scope, rolling back if Commit was not reached.
	Close(ctx context.Context)
}

// ChatHistoryRepository stores conversation turns.
type ChatHistoryRepository interface {
	Add(ctx context.Context, msg *domain.ChatMessage) error
	Get(ctx context.Context, id string) (*domain.ChatMessage, error)

	// RecentHistory returns up to limit messages in chronological order,
	// ending with the newest.
	RecentHistory(ctx context.Context, limit int) ([]*domain.ChatMessage, error)

	Remove(ctx context.Context, id string) error
}

// InstructionRepository stores system instructions.
type InstructionRepository interface {
	Add(ctx context.Context, si *domain.SystemInstruction) error
	Get(ctx context.Context, id string) (*domain.SystemInstruction, error)

	// FindActiveByProvider returns the active instruction for a
	// provider, or ErrNotFound when none is active.
	FindActiveByProvider(ctx context.Context, provider string) (*domain.SystemInstruction, error)

	// Update persists a modified instruction with a version check and
	// increments the version on success. A stale version yields
	// ErrOptimisticLock.
	Update(ctx context.Context, si *domain.SystemInstruction) error

	Remove(ctx context.Context, id string) error
}

// SessionRepository stores interaction sessions.
type SessionRepository interface {
	Add(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update persists a modified session with a version check, as for
	// instructions.
	Update(ctx context.Context, s *domain.Session) error
}

// MapError converts a repository error into the UseCaseError crossing
// the handler boundary.
func MapError(err error) *core.UseCaseError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return core.NotFoundError("%s", err.Error())
	case errors.Is(err, ErrOptimisticLock):
		return core.ConcurrencyError("%s", err.Error())
	default:
		return core.UnexpectedError("%s", err.Error())
	}
}
