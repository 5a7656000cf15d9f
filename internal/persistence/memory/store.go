// Package memory implements the persistence contracts in process
// memory. Scopes stage their writes and apply them atomically at
// commit with the same version-check semantics as the MongoDB backend,
// so use case behavior under contention can be tested without a
// database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence"
)

// Store holds the shared state all scopes read from and commit to.
type Store struct {
	mu           sync.Mutex
	chat         map[string]domain.ChatMessage
	instructions map[string]domain.SystemInstruction
	sessions     map[string]domain.Session
	outbox       map[string]outbox.Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		chat:         make(map[string]domain.ChatMessage),
		instructions: make(map[string]domain.SystemInstruction),
		sessions:     make(map[string]domain.Session),
		outbox:       make(map[string]outbox.Entry),
	}
}

// ChatCount returns the number of stored chat messages.
func (s *Store) ChatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chat)
}

// ChatMessages returns all stored chat messages in chronological
// order.
func (s *Store) ChatMessages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]domain.ChatMessage, 0, len(s.chat))
	for _, m := range s.chat {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs
}

// Instruction returns a stored instruction by ID.
func (s *Store) Instruction(id string) (domain.SystemInstruction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, ok := s.instructions[id]
	return si, ok
}

// Session returns a stored session by ID.
func (s *Store) Session(id string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// OutboxEntries returns all outbox entries, oldest first.
func (s *Store) OutboxEntries() []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]outbox.Entry, 0, len(s.outbox))
	for _, e := range s.outbox {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Outbox returns a repository over the store's outbox entries for use
// outside transactions, as the relay does.
func (s *Store) Outbox() outbox.Repository {
	return &storeOutbox{store: s}
}

// storeOutbox implements outbox.Repository directly against the store.
type storeOutbox struct {
	store *Store
}

func (o *storeOutbox) Add(ctx context.Context, entry *outbox.Entry) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if _, exists := o.store.outbox[entry.ID]; exists {
		return fmt.Errorf("outbox entry %s: %w", entry.ID, persistence.ErrDuplicateKey)
	}
	o.store.outbox[entry.ID] = *entry
	return nil
}

func (o *storeOutbox) MarkSent(ctx context.Context, ids ...string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if e, ok := o.store.outbox[id]; ok {
			e.Status = outbox.StatusSent
			e.UpdatedAt = now
			o.store.outbox[id] = e
		}
	}
	return nil
}

func (o *storeOutbox) FetchUnsent(ctx context.Context, olderThan time.Duration, limit int) ([]*outbox.Entry, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)

	var stuck []*outbox.Entry
	for id := range o.store.outbox {
		e := o.store.outbox[id]
		if e.Status == outbox.StatusPending && e.CreatedAt.Before(cutoff) {
			copied := e
			stuck = append(stuck, &copied)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].CreatedAt.Before(stuck[j].CreatedAt) })
	if len(stuck) > limit {
		stuck = stuck[:limit]
	}
	for _, e := range stuck {
		e.Attempts++
		o.store.outbox[e.ID] = *e
	}
	return stuck, nil
}

func (o *storeOutbox) CountPending(ctx context.Context) (int64, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	var n int64
	for _, e := range o.store.outbox {
		if e.Status == outbox.StatusPending {
			n++
		}
	}
	return n, nil
}
