package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence"
)

// chatHistoryRepository stages chat writes in its scope.
type chatHistoryRepository struct {
	scope *scope
}

func (r *chatHistoryRepository) Add(ctx context.Context, msg *domain.ChatMessage) error {
	k := key(collChat, msg.ID)
	if _, staged := r.scope.identity[k]; staged {
		return fmt.Errorf("chat message %s: %w", msg.ID, persistence.ErrDuplicateKey)
	}
	r.scope.store.mu.Lock()
	_, exists := r.scope.store.chat[msg.ID]
	r.scope.store.mu.Unlock()
	if exists {
		return fmt.Errorf("chat message %s: %w", msg.ID, persistence.ErrDuplicateKey)
	}
	r.scope.identity[k] = msg
	r.scope.stage(stagedOp{kind: opInsert, coll: collChat, id: msg.ID, value: *msg})
	return nil
}

func (r *chatHistoryRepository) Get(ctx context.Context, id string) (*domain.ChatMessage, error) {
	k := key(collChat, id)
	if r.scope.deleted[k] {
		return nil, fmt.Errorf("chat message %s: %w", id, persistence.ErrNotFound)
	}
	if cached, ok := r.scope.identity[k]; ok {
		return cached.(*domain.ChatMessage), nil
	}
	r.scope.store.mu.Lock()
	stored, ok := r.scope.store.chat[id]
	r.scope.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chat message %s: %w", id, persistence.ErrNotFound)
	}
	msg := stored
	r.scope.identity[k] = &msg
	return &msg, nil
}

func (r *chatHistoryRepository) RecentHistory(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	r.scope.store.mu.Lock()
	all := make([]domain.ChatMessage, 0, len(r.scope.store.chat))
	for id, m := range r.scope.store.chat {
		if !r.scope.deleted[key(collChat, id)] {
			all = append(all, m)
		}
	}
	r.scope.store.mu.Unlock()

	// Include this scope's own staged inserts.
	for _, op := range r.scope.ops {
		if op.kind == opInsert && op.coll == collChat {
			all = append(all, op.value.(domain.ChatMessage))
		}
	}

	// IDs are time-ordered, so ID order is chronological order.
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	msgs := make([]*domain.ChatMessage, len(all))
	for i := range all {
		k := key(collChat, all[i].ID)
		if cached, ok := r.scope.identity[k]; ok {
			msgs[i] = cached.(*domain.ChatMessage)
			continue
		}
		msg := all[i]
		r.scope.identity[k] = &msg
		msgs[i] = &msg
	}
	return msgs, nil
}

func (r *chatHistoryRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	k := key(collChat, id)
	r.scope.deleted[k] = true
	delete(r.scope.identity, k)
	r.scope.stage(stagedOp{kind: opDelete, coll: collChat, id: id})
	return nil
}

// instructionRepository stages instruction writes with version checks
// resolved at commit.
type instructionRepository struct {
	scope *scope
}

func (r *instructionRepository) Add(ctx context.Context, si *domain.SystemInstruction) error {
	k := key(collInstructions, si.ID)
	if _, staged := r.scope.identity[k]; staged {
		return fmt.Errorf("system instruction %s: %w", si.ID, persistence.ErrDuplicateKey)
	}
	r.scope.store.mu.Lock()
	_, exists := r.scope.store.instructions[si.ID]
	r.scope.store.mu.Unlock()
	if exists {
		return fmt.Errorf("system instruction %s: %w", si.ID, persistence.ErrDuplicateKey)
	}
	r.scope.identity[k] = si
	r.scope.stage(stagedOp{kind: opInsert, coll: collInstructions, id: si.ID, value: *si})
	return nil
}

func (r *instructionRepository) Get(ctx context.Context, id string) (*domain.SystemInstruction, error) {
	k := key(collInstructions, id)
	if r.scope.deleted[k] {
		return nil, fmt.Errorf("system instruction %s: %w", id, persistence.ErrNotFound)
	}
	if cached, ok := r.scope.identity[k]; ok {
		return cached.(*domain.SystemInstruction), nil
	}
	r.scope.store.mu.Lock()
	stored, ok := r.scope.store.instructions[id]
	r.scope.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("system instruction %s: %w", id, persistence.ErrNotFound)
	}
	si := stored
	r.scope.identity[k] = &si
	return &si, nil
}

func (r *instructionRepository) FindActiveByProvider(ctx context.Context, provider string) (*domain.SystemInstruction, error) {
	// Prefer instances already loaded or modified in this scope.
	for k, v := range r.scope.identity {
		si, ok := v.(*domain.SystemInstruction)
		if ok && !r.scope.deleted[k] && si.Provider == provider && si.Active {
			return si, nil
		}
	}

	r.scope.store.mu.Lock()
	defer r.scope.store.mu.Unlock()
	for id, stored := range r.scope.store.instructions {
		k := key(collInstructions, id)
		if r.scope.deleted[k] {
			continue
		}
		if _, loaded := r.scope.identity[k]; loaded {
			continue
		}
		if stored.Provider == provider && stored.Active {
			si := stored
			r.scope.identity[k] = &si
			return &si, nil
		}
	}
	return nil, fmt.Errorf("active instruction for provider %s: %w", provider, persistence.ErrNotFound)
}

func (r *instructionRepository) Update(ctx context.Context, si *domain.SystemInstruction) error {
	readVersion := si.Version
	si.Version = readVersion + 1
	r.scope.identity[key(collInstructions, si.ID)] = si
	r.scope.stage(stagedOp{
		kind:            opUpdate,
		coll:            collInstructions,
		id:              si.ID,
		expectedVersion: readVersion,
		value:           *si,
	})
	return nil
}

func (r *instructionRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	k := key(collInstructions, id)
	r.scope.deleted[k] = true
	delete(r.scope.identity, k)
	r.scope.stage(stagedOp{kind: opDelete, coll: collInstructions, id: id})
	return nil
}

// sessionRepository stages session writes with version checks resolved
// at commit.
type sessionRepository struct {
	scope *scope
}

func (r *sessionRepository) Add(ctx context.Context, sess *domain.Session) error {
	k := key(collSessions, sess.ID)
	if _, staged := r.scope.identity[k]; staged {
		return fmt.Errorf("session %s: %w", sess.ID, persistence.ErrDuplicateKey)
	}
	r.scope.store.mu.Lock()
	_, exists := r.scope.store.sessions[sess.ID]
	r.scope.store.mu.Unlock()
	if exists {
		return fmt.Errorf("session %s: %w", sess.ID, persistence.ErrDuplicateKey)
	}
	r.scope.identity[k] = sess
	r.scope.stage(stagedOp{kind: opInsert, coll: collSessions, id: sess.ID, value: *sess})
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	k := key(collSessions, id)
	if cached, ok := r.scope.identity[k]; ok {
		return cached.(*domain.Session), nil
	}
	r.scope.store.mu.Lock()
	stored, ok := r.scope.store.sessions[id]
	r.scope.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, persistence.ErrNotFound)
	}
	sess := stored
	r.scope.identity[k] = &sess
	return &sess, nil
}

func (r *sessionRepository) Update(ctx context.Context, sess *domain.Session) error {
	readVersion := sess.Version
	sess.Version = readVersion + 1
	r.scope.identity[key(collSessions, sess.ID)] = sess
	r.scope.stage(stagedOp{
		kind:            opUpdate,
		coll:            collSessions,
		id:              sess.ID,
		expectedVersion: readVersion,
		value:           *sess,
	})
	return nil
}

// scopedOutbox stages outbox entries so they commit with the scope.
// Confirmation and relay queries go straight to the store.
type scopedOutbox struct {
	scope *scope
}

func (o *scopedOutbox) Add(ctx context.Context, entry *outbox.Entry) error {
	o.scope.stage(stagedOp{kind: opInsert, coll: collOutbox, id: entry.ID, value: *entry})
	return nil
}

func (o *scopedOutbox) MarkSent(ctx context.Context, ids ...string) error {
	return o.scope.store.Outbox().MarkSent(ctx, ids...)
}

func (o *scopedOutbox) FetchUnsent(ctx context.Context, olderThan time.Duration, limit int) ([]*outbox.Entry, error) {
	return o.scope.store.Outbox().FetchUnsent(ctx, olderThan, limit)
}

func (o *scopedOutbox) CountPending(ctx context.Context) (int64, error) {
	return o.scope.store.Outbox().CountPending(ctx)
}
