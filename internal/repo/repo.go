// Package repo defines the storage-agnostic repository contract: any record
// carrying an id and a repo-managed timestamp can be persisted to any backend
// (document store, Postgres, memory) through the same generic collection API.
package repo

import (
	"context"
	"time"
)

// Item is the minimum surface a persisted record must expose. The repository
// layer owns both fields: ids are assigned on first save, timestamps are
// stamped on every successful write and never set by callers.
type Item interface {
	GetID() string
	SetID(id string)
	GetTimestamp() time.Time
	SetTimestamp(ts time.Time)
}

// Collection is the generic CRUD surface each backend implements for one
// record type. A collection is registered explicitly with its name; there is
// no reflection over record fields.
type Collection[T Item] interface {
	// Search returns every record in the collection. Filtering and ordering
	// happen in the caller; reads may be stale with respect to concurrent
	// writers.
	Search(ctx context.Context) ([]T, error)

	// Save upserts by id and stamps the item's timestamp. If the stored copy
	// carries a strictly newer timestamp (whole-second truncation), the save
	// is rejected and the stored copy is returned as the conflict with a nil
	// error; the store is left untouched. On success conflict is the zero
	// value.
	Save(ctx context.Context, item T) (conflict T, err error)

	// Delete removes by id. Deleting an absent record is a no-op.
	Delete(ctx context.Context, item T) error

	// DeleteAll removes every record in the collection.
	DeleteAll(ctx context.Context) error

	// Drop removes the collection itself. ErrUnsupported on schema-rigid
	// backends.
	Drop(ctx context.Context) error

	// Create creates an empty collection. Same ErrUnsupported policy as Drop.
	Create(ctx context.Context) error
}

// Connection is a scoped unit of work. Backends that buffer writes flush them
// on Close; Close must be called on every exit path (defer it).
type Connection interface {
	Close(ctx context.Context) error
}

// Ptr constrains a collection's pointer type: *T must satisfy Item. Backends
// need the concrete T to allocate records when decoding, so collections are
// parameterized on both.
type Ptr[T any] interface {
	Item
	*T
}

// Truncate drops sub-second precision for timestamp comparison. Stores with
// coarser clock resolution than Go round-trip timestamps losing millis, so
// conflict checks compare whole seconds only.
func Truncate(t time.Time) time.Time { return t.Truncate(time.Second) }

// Newer reports whether a beats b under the truncated comparison used by Save.
func Newer(a, b time.Time) bool { return Truncate(a).After(Truncate(b)) }
