package memory

import (
	"context"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence"
)

type scopeState int

const (
	stateOpen scopeState = iota
	stateCommitted
	stateRolledBack
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

const (
	collChat         = "chat"
	collInstructions = "instructions"
	collSessions     = "sessions"
	collOutbox       = "outbox"
)

// stagedOp is one pending write. Updates carry the version the caller
// read; commit rejects the whole scope when the stored version moved.
type stagedOp struct {
	kind            opKind
	coll            string
	id              string
	expectedVersion int64
	value           any
}

// UnitOfWork opens scopes against a shared Store.
type UnitOfWork struct {
	store *Store

	// BeforeCommit, when set, runs inside Commit just before writes
	// are applied. Tests use it to interleave a competing commit.
	BeforeCommit func()
}

// NewUnitOfWork creates a unit of work over the given store.
func NewUnitOfWork(store *Store) *UnitOfWork {
	return &UnitOfWork{store: store}
}

// Begin opens a staging scope.
func (u *UnitOfWork) Begin(ctx context.Context) (persistence.Scope, *core.UseCaseError) {
	return &scope{
		uow:      u,
		store:    u.store,
		state:    stateOpen,
		identity: make(map[string]any),
		deleted:  make(map[string]bool),
	}, nil
}

var _ persistence.UnitOfWork = (*UnitOfWork)(nil)

// scope stages writes until Commit applies them atomically.
type scope struct {
	uow   *UnitOfWork
	store *Store
	state scopeState

	ops      []stagedOp
	identity map[string]any
	deleted  map[string]bool
}

func key(coll, id string) string { return coll + "/" + id }

func (s *scope) stage(op stagedOp) {
	s.ops = append(s.ops, op)
}

func (s *scope) ChatHistory() persistence.ChatHistoryRepository {
	return &chatHistoryRepository{scope: s}
}

func (s *scope) Instructions() persistence.InstructionRepository {
	return &instructionRepository{scope: s}
}

func (s *scope) Sessions() persistence.SessionRepository {
	return &sessionRepository{scope: s}
}

func (s *scope) Outbox() outbox.Repository {
	return &scopedOutbox{scope: s}
}

// Commit validates every staged write against current store state and
// applies them all, or none.
func (s *scope) Commit(ctx context.Context) core.Result[core.Unit] {
	switch s.state {
	case stateCommitted:
		panic("persistence: scope committed twice")
	case stateRolledBack:
		panic("persistence: commit after rollback")
	}
	s.state = stateCommitted

	if s.uow.BeforeCommit != nil {
		s.uow.BeforeCommit()
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	for _, op := range s.ops {
		if uerr := s.validate(op); uerr != nil {
			return core.Err[core.Unit](uerr)
		}
	}
	for _, op := range s.ops {
		s.apply(op)
	}
	return core.Ok(core.Unit{})
}

func (s *scope) validate(op stagedOp) *core.UseCaseError {
	switch op.kind {
	case opInsert:
		if s.exists(op.coll, op.id) {
			return core.UnexpectedError("duplicate %s id %s", op.coll, op.id)
		}
	case opUpdate:
		current, ok := s.currentVersion(op.coll, op.id)
		if !ok || current != op.expectedVersion {
			return core.ConcurrencyError("%s %s modified concurrently", op.coll, op.id)
		}
	case opDelete:
		if !s.exists(op.coll, op.id) {
			return core.ConcurrencyError("%s %s removed concurrently", op.coll, op.id)
		}
	}
	return nil
}

func (s *scope) exists(coll, id string) bool {
	switch coll {
	case collChat:
		_, ok := s.store.chat[id]
		return ok
	case collInstructions:
		_, ok := s.store.instructions[id]
		return ok
	case collSessions:
		_, ok := s.store.sessions[id]
		return ok
	case collOutbox:
		_, ok := s.store.outbox[id]
		return ok
	}
	return false
}

func (s *scope) currentVersion(coll, id string) (int64, bool) {
	switch coll {
	case collInstructions:
		si, ok := s.store.instructions[id]
		return si.Version, ok
	case collSessions:
		sess, ok := s.store.sessions[id]
		return sess.Version, ok
	}
	return 0, false
}

func (s *scope) apply(op stagedOp) {
	switch op.kind {
	case opInsert, opUpdate:
		switch v := op.value.(type) {
		case domain.ChatMessage:
			s.store.chat[op.id] = v
		case domain.SystemInstruction:
			s.store.instructions[op.id] = v
		case domain.Session:
			s.store.sessions[op.id] = v
		case outbox.Entry:
			s.store.outbox[op.id] = v
		}
	case opDelete:
		switch op.coll {
		case collChat:
			delete(s.store.chat, op.id)
		case collInstructions:
			delete(s.store.instructions, op.id)
		case collSessions:
			delete(s.store.sessions, op.id)
		}
	}
}

// Rollback discards staged writes. Idempotent; a no-op after Commit.
func (s *scope) Rollback(ctx context.Context) {
	if s.state != stateOpen {
		return
	}
	s.state = stateRolledBack
	s.ops = nil
}

// Close rolls back when Commit was not reached.
func (s *scope) Close(ctx context.Context) {
	s.Rollback(ctx)
}

var _ persistence.Scope = (*scope)(nil)
