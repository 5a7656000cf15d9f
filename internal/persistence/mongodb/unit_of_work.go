package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence"
)

type scopeState int

const (
	stateOpen scopeState = iota
	stateCommitted
	stateRolledBack
)

// UnitOfWork opens MongoDB transaction scopes.
type UnitOfWork struct {
	client *Client
}

// NewUnitOfWork creates a unit of work over the given client.
func NewUnitOfWork(client *Client) *UnitOfWork {
	return &UnitOfWork{client: client}
}

// Begin starts a session and a transaction on it.
func (u *UnitOfWork) Begin(ctx context.Context) (persistence.Scope, *core.UseCaseError) {
	session, err := u.client.client.StartSession()
	if err != nil {
		return nil, core.UnexpectedError("start session: %s", err.Error())
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, core.UnexpectedError("start transaction: %s", err.Error())
	}
	return &scope{
		session:  session,
		database: u.client.database,
		state:    stateOpen,
		identity: make(map[string]any),
	}, nil
}

var _ persistence.UnitOfWork = (*UnitOfWork)(nil)

// scope is one open MongoDB transaction. Repositories bound to it run
// through sessionCtx so their operations join the transaction, and
// share the identity map.
type scope struct {
	session  mongo.Session
	database *mongo.Database
	state    scopeState
	identity map[string]any

	chat         *chatHistoryRepository
	instructions *instructionRepository
	sessions     *sessionRepository
	outboxRepo   *scopedOutboxRepository
}

func (s *scope) sessionCtx(ctx context.Context) mongo.SessionContext {
	return mongo.NewSessionContext(ctx, s.session)
}

func (s *scope) coll(name string) *mongo.Collection {
	return s.database.Collection(name)
}

func (s *scope) ChatHistory() persistence.ChatHistoryRepository {
	if s.chat == nil {
		s.chat = &chatHistoryRepository{scope: s}
	}
	return s.chat
}

func (s *scope) Instructions() persistence.InstructionRepository {
	if s.instructions == nil {
		s.instructions = &instructionRepository{scope: s}
	}
	return s.instructions
}

func (s *scope) Sessions() persistence.SessionRepository {
	if s.sessions == nil {
		s.sessions = &sessionRepository{scope: s}
	}
	return s.sessions
}

func (s *scope) Outbox() outbox.Repository {
	if s.outboxRepo == nil {
		s.outboxRepo = &scopedOutboxRepository{
			scope: s,
			inner: outbox.NewMongoRepository(s.database),
		}
	}
	return s.outboxRepo
}

// Commit commits the transaction and closes the scope.
func (s *scope) Commit(ctx context.Context) core.Result[core.Unit] {
	switch s.state {
	case stateCommitted:
		panic("persistence: scope committed twice")
	case stateRolledBack:
		panic("persistence: commit after rollback")
	}
	s.state = stateCommitted

	err := s.session.CommitTransaction(s.sessionCtx(ctx))
	s.session.EndSession(ctx)
	if err != nil {
		if isWriteConflict(err) {
			return core.Err[core.Unit](core.ConcurrencyError("transaction aborted by concurrent write"))
		}
		return core.Err[core.Unit](core.UnexpectedError("commit transaction: %s", err.Error()))
	}
	return core.Ok(core.Unit{})
}

// Rollback aborts the transaction. Idempotent; a no-op after Commit.
func (s *scope) Rollback(ctx context.Context) {
	if s.state != stateOpen {
		return
	}
	s.state = stateRolledBack
	_ = s.session.AbortTransaction(s.sessionCtx(ctx))
	s.session.EndSession(ctx)
}

// Close rolls back when Commit was not reached.
func (s *scope) Close(ctx context.Context) {
	s.Rollback(ctx)
}

var _ persistence.Scope = (*scope)(nil)

// isWriteConflict recognizes transaction failures caused by concurrent
// writes. MongoDB reports these as WriteConflict (code 112) or with
// the TransientTransactionError label.
func isWriteConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Code == 112 || cmdErr.HasErrorLabel("TransientTransactionError") {
			return true
		}
	}
	var labeled mongo.ServerError
	if errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError") {
		return true
	}
	return false
}

// scopedOutboxRepository routes outbox writes through the scope's
// session so entries commit atomically with the state change.
type scopedOutboxRepository struct {
	scope *scope
	inner *outbox.MongoRepository
}

func (r *scopedOutboxRepository) Add(ctx context.Context, entry *outbox.Entry) error {
	return r.inner.Add(r.scope.sessionCtx(ctx), entry)
}

func (r *scopedOutboxRepository) MarkSent(ctx context.Context, ids ...string) error {
	return r.inner.MarkSent(r.scope.sessionCtx(ctx), ids...)
}

func (r *scopedOutboxRepository) FetchUnsent(ctx context.Context, olderThan time.Duration, limit int) ([]*outbox.Entry, error) {
	return r.inner.FetchUnsent(r.scope.sessionCtx(ctx), olderThan, limit)
}

func (r *scopedOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	return r.inner.CountPending(r.scope.sessionCtx(ctx))
}
