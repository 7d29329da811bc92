// Package doc implements the repository contract over any docstore client.
// Records are stored as JSON documents keyed by id; the timestamp conflict
// check runs read-compare-write inside one store session.
package doc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshrizzo/MyLib/internal/docstore"
	"github.com/joshrizzo/MyLib/internal/metrics"
	"github.com/joshrizzo/MyLib/internal/repo"
)

// Service hands out collections and scoped connections against one document
// store.
type Service struct {
	client docstore.Client
	log    *zap.Logger
	now    func() time.Time
}

// Option tweaks a Service. Only tests should need these.
type Option func(*Service)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wraps a document store client. log may be nil.
func NewService(client docstore.Client, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{client: client, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PersistentConnection pins one store session for batching multiple writes.
// Close releases it and must run on every exit path.
func (s *Service) PersistentConnection(ctx context.Context) (*Conn, error) {
	sess, err := s.client.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("doc: open session: %w", err)
	}
	return &Conn{svc: s, sess: sess}, nil
}

// Conn is a scoped unit of work over one pinned session.
type Conn struct {
	svc  *Service
	sess docstore.Session
}

// Close releases the underlying session.
func (c *Conn) Close(ctx context.Context) error { return c.sess.Close(ctx) }

// Collection binds one record type to one named collection. Register each
// type explicitly with NewCollection; names follow the stored collection, not
// the Go type.
type Collection[T any, PT repo.Ptr[T]] struct {
	svc  *Service
	name string
	conn *Conn
}

// NewCollection registers the collection under name on svc.
func NewCollection[T any, PT repo.Ptr[T]](svc *Service, name string) *Collection[T, PT] {
	return &Collection[T, PT]{svc: svc, name: name}
}

// On returns a view of the collection bound to conn, so multiple operations
// share the one pinned session.
func (c *Collection[T, PT]) On(conn *Conn) *Collection[T, PT] {
	return &Collection[T, PT]{svc: c.svc, name: c.name, conn: conn}
}

// session resolves the bound connection or opens a throwaway one.
func (c *Collection[T, PT]) session(ctx context.Context) (docstore.Session, func(), error) {
	if c.conn != nil {
		return c.conn.sess, func() {}, nil
	}
	sess, err := c.svc.client.Session(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("doc: open session: %w", err)
	}
	return sess, func() { _ = sess.Close(ctx) }, nil
}

// Search returns every record in the collection. Callers filter in memory;
// the read is not transactional with respect to concurrent writers.
func (c *Collection[T, PT]) Search(ctx context.Context) ([]PT, error) {
	sess, release, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := sess.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	items := make([]PT, 0, len(raw))
	for _, doc := range raw {
		item := PT(new(T))
		if err := json.Unmarshal(doc, item); err != nil {
			return nil, fmt.Errorf("doc: decode %s record: %w", c.name, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Save upserts by id, stamping the timestamp. A stored copy with a strictly
// newer truncated timestamp wins: it comes back as the conflict and the store
// keeps it.
func (c *Collection[T, PT]) Save(ctx context.Context, item PT) (PT, error) {
	var zero PT
	sess, release, err := c.session(ctx)
	if err != nil {
		return zero, err
	}
	defer release()

	if item.GetID() == "" {
		item.SetID(uuid.NewString())
	} else {
		raw, err := sess.Get(ctx, c.name, item.GetID())
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			// first write under a caller-chosen id
		case err != nil:
			return zero, err
		default:
			existing := PT(new(T))
			if err := json.Unmarshal(raw, existing); err != nil {
				return zero, fmt.Errorf("doc: decode %s record: %w", c.name, err)
			}
			if repo.Newer(existing.GetTimestamp(), item.GetTimestamp()) {
				metrics.RepoConflicts.WithLabelValues(c.name).Inc()
				return existing, nil
			}
		}
	}

	item.SetTimestamp(c.svc.now())
	doc, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("doc: encode %s record: %w", c.name, err)
	}
	if err := sess.Put(ctx, c.name, item.GetID(), doc); err != nil {
		return zero, err
	}
	metrics.RepoSaves.WithLabelValues(c.name).Inc()
	return zero, nil
}

// Delete removes by id; absent records are a no-op.
func (c *Collection[T, PT]) Delete(ctx context.Context, item PT) error {
	sess, release, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer release()
	return sess.Delete(ctx, c.name, item.GetID())
}

// DeleteAll removes every record in the collection.
func (c *Collection[T, PT]) DeleteAll(ctx context.Context) error {
	sess, release, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer release()
	return sess.DeleteAll(ctx, c.name)
}

// Drop removes the collection itself.
func (c *Collection[T, PT]) Drop(ctx context.Context) error {
	sess, release, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer release()
	return sess.Drop(ctx, c.name)
}

// Create creates the empty collection.
func (c *Collection[T, PT]) Create(ctx context.Context) error {
	sess, release, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer release()
	return sess.Create(ctx, c.name)
}
