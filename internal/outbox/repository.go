package outbox

import (
	"context"
	"time"
)

// CollectionName is the storage collection for outbox entries.
const CollectionName = "event_outbox"

// Repository stores outbox entries. Add participates in the caller's
// transaction when obtained from a persistence scope; the remaining
// methods are used outside transactions by the publish confirmation
// path and the relay.
type Repository interface {
	// Add stages a new entry.
	Add(ctx context.Context, entry *Entry) error

	// MarkSent confirms the publish of the given entries.
	MarkSent(ctx context.Context, ids ...string) error

	// FetchUnsent returns up to limit PENDING entries older than
	// olderThan, oldest first. Young pending entries are skipped; their
	// owning process is assumed to still be publishing them.
	FetchUnsent(ctx context.Context, olderThan time.Duration, limit int) ([]*Entry, error)

	// CountPending returns the number of PENDING entries.
	CountPending(ctx context.Context) (int64, error)
}
