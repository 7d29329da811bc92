// Package docstore defines the contract a document store client must expose:
// named collections of opaque documents addressable by id, listable for
// predicate scans, with per-session acquisition and deterministic release.
// Implementations live in the subpackages (fs, redis).
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document carries the id.
var ErrNotFound = errors.New("docstore: document not found")

// Client hands out sessions against one logical database.
type Client interface {
	// Session pins one connection/request context. Callers must Close it on
	// every exit path.
	Session(ctx context.Context) (Session, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the client and any pooled connections.
	Close() error
}

// Session is a scoped handle for store operations. Implementations may batch
// or pin a single underlying connection for its lifetime.
type Session interface {
	// List returns every document in the collection. A missing collection
	// lists as empty.
	List(ctx context.Context, collection string) ([][]byte, error)
	// Get returns the document stored under id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// Put upserts the document under id, creating the collection if needed.
	Put(ctx context.Context, collection, id string, doc []byte) error
	// Delete removes the document under id. Absent ids are a no-op.
	Delete(ctx context.Context, collection, id string) error
	// DeleteAll removes every document but keeps the collection.
	DeleteAll(ctx context.Context, collection string) error
	// Drop removes the collection itself.
	Drop(ctx context.Context, collection string) error
	// Create creates an empty collection. Creating an existing collection is
	// a no-op.
	Create(ctx context.Context, collection string) error
	// Close releases the session, flushing anything buffered.
	Close(ctx context.Context) error
}
