// Package memory implements the repository contract in process memory, one
// go-cache container per collection. It backs tests and the zero-dependency
// dev mode; semantics mirror the doc backend, including the timestamp
// conflict check.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/joshrizzo/MyLib/internal/metrics"
	"github.com/joshrizzo/MyLib/internal/repo"
)

// Service holds the per-collection containers.
type Service struct {
	mu    sync.RWMutex
	colls map[string]*gocache.Cache
	now   func() time.Time
}

// Option tweaks a Service.
type Option func(*Service)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns an empty in-memory store.
func NewService(opts ...Option) *Service {
	s := &Service{colls: map[string]*gocache.Cache{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// coll returns the container for name, creating it when create is set.
func (s *Service) coll(name string, create bool) *gocache.Cache {
	s.mu.RLock()
	c := s.colls[name]
	s.mu.RUnlock()
	if c != nil || !create {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c = s.colls[name]; c == nil {
		c = gocache.New(gocache.NoExpiration, 0)
		s.colls[name] = c
	}
	return c
}

// PersistentConnection exists for contract parity; memory has no session to
// pin, so the connection is a no-op handle.
func (s *Service) PersistentConnection(ctx context.Context) (*Conn, error) {
	return &Conn{}, nil
}

// Conn is the memory backend's unit-of-work handle.
type Conn struct{}

func (c *Conn) Close(ctx context.Context) error { return nil }

// Collection binds a record type to a named container. Records are stored as
// JSON so saved items never alias live caller pointers.
type Collection[T any, PT repo.Ptr[T]] struct {
	svc  *Service
	name string
}

// NewCollection registers the collection under name on svc.
func NewCollection[T any, PT repo.Ptr[T]](svc *Service, name string) *Collection[T, PT] {
	return &Collection[T, PT]{svc: svc, name: name}
}

// On returns the collection itself; memory needs no pinned session, the
// method keeps call sites uniform across backends.
func (c *Collection[T, PT]) On(conn *Conn) *Collection[T, PT] { return c }

func (c *Collection[T, PT]) decode(doc string) (PT, error) {
	item := PT(new(T))
	if err := json.Unmarshal([]byte(doc), item); err != nil {
		var zero PT
		return zero, fmt.Errorf("memory: decode %s record: %w", c.name, err)
	}
	return item, nil
}

func (c *Collection[T, PT]) Search(ctx context.Context) ([]PT, error) {
	cache := c.svc.coll(c.name, false)
	if cache == nil {
		return nil, nil
	}
	stored := cache.Items()
	items := make([]PT, 0, len(stored))
	for _, it := range stored {
		item, err := c.decode(it.Object.(string))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Collection[T, PT]) Save(ctx context.Context, item PT) (PT, error) {
	var zero PT
	cache := c.svc.coll(c.name, true)

	if item.GetID() == "" {
		item.SetID(uuid.NewString())
	} else if doc, ok := cache.Get(item.GetID()); ok {
		existing, err := c.decode(doc.(string))
		if err != nil {
			return zero, err
		}
		if repo.Newer(existing.GetTimestamp(), item.GetTimestamp()) {
			metrics.RepoConflicts.WithLabelValues(c.name).Inc()
			return existing, nil
		}
	}

	item.SetTimestamp(c.svc.now())
	doc, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("memory: encode %s record: %w", c.name, err)
	}
	cache.Set(item.GetID(), string(doc), gocache.NoExpiration)
	metrics.RepoSaves.WithLabelValues(c.name).Inc()
	return zero, nil
}

func (c *Collection[T, PT]) Delete(ctx context.Context, item PT) error {
	if cache := c.svc.coll(c.name, false); cache != nil {
		cache.Delete(item.GetID())
	}
	return nil
}

func (c *Collection[T, PT]) DeleteAll(ctx context.Context) error {
	if cache := c.svc.coll(c.name, false); cache != nil {
		cache.Flush()
	}
	return nil
}

func (c *Collection[T, PT]) Drop(ctx context.Context) error {
	c.svc.mu.Lock()
	delete(c.svc.colls, c.name)
	c.svc.mu.Unlock()
	return nil
}

func (c *Collection[T, PT]) Create(ctx context.Context) error {
	c.svc.coll(c.name, true)
	return nil
}
