// Package redis implements the docstore contract on Redis: one hash per
// collection plus a registry set of known collection names, all under a
// configurable key prefix. Suits dev and small deployments where the
// document set fits a full HVALS scan.
package redis

import (
	"context"
	"fmt"

	rdb "github.com/redis/go-redis/v9"

	"github.com/joshrizzo/MyLib/internal/docstore"
)

// Client is a docstore.Client over one Redis database.
type Client struct {
	c      *rdb.Client
	prefix string
}

// New connects to addr/db. prefix namespaces every key; empty means "docs".
func New(addr string, db int, prefix string) *Client {
	if prefix == "" {
		prefix = "docs"
	}
	return &Client{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

// NewFromClient wraps an existing connection (tests, shared pools).
func NewFromClient(c *rdb.Client, prefix string) *Client {
	if prefix == "" {
		prefix = "docs"
	}
	return &Client{c: c, prefix: prefix}
}

func (c *Client) Ping(ctx context.Context) error { return c.c.Ping(ctx).Err() }
func (c *Client) Close() error                   { return c.c.Close() }

func (c *Client) Session(ctx context.Context) (docstore.Session, error) {
	return &session{c: c}, nil
}

func (c *Client) hashKey(collection string) string {
	return c.prefix + ":" + collection
}

func (c *Client) registryKey() string {
	return c.prefix + ":collections"
}

// session issues commands on the client's pooled connection. Redis commands
// are atomic per key, so no extra pinning is needed; Close is a no-op.
type session struct{ c *Client }

func (s *session) List(ctx context.Context, collection string) ([][]byte, error) {
	vals, err := s.c.c.HVals(ctx, s.c.hashKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list %s: %w", collection, err)
	}
	docs := make([][]byte, 0, len(vals))
	for _, v := range vals {
		docs = append(docs, []byte(v))
	}
	return docs, nil
}

func (s *session) Get(ctx context.Context, collection, id string) ([]byte, error) {
	b, err := s.c.c.HGet(ctx, s.c.hashKey(collection), id).Bytes()
	if err == rdb.Nil {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s/%s: %w", collection, id, err)
	}
	return b, nil
}

func (s *session) Put(ctx context.Context, collection, id string, doc []byte) error {
	pipe := s.c.c.TxPipeline()
	pipe.HSet(ctx, s.c.hashKey(collection), id, doc)
	pipe.SAdd(ctx, s.c.registryKey(), collection)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *session) Delete(ctx context.Context, collection, id string) error {
	if err := s.c.c.HDel(ctx, s.c.hashKey(collection), id).Err(); err != nil {
		return fmt.Errorf("redis: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *session) DeleteAll(ctx context.Context, collection string) error {
	if err := s.c.c.Del(ctx, s.c.hashKey(collection)).Err(); err != nil {
		return fmt.Errorf("redis: clear %s: %w", collection, err)
	}
	return nil
}

func (s *session) Drop(ctx context.Context, collection string) error {
	pipe := s.c.c.TxPipeline()
	pipe.Del(ctx, s.c.hashKey(collection))
	pipe.SRem(ctx, s.c.registryKey(), collection)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: drop %s: %w", collection, err)
	}
	return nil
}

func (s *session) Create(ctx context.Context, collection string) error {
	if err := s.c.c.SAdd(ctx, s.c.registryKey(), collection).Err(); err != nil {
		return fmt.Errorf("redis: create %s: %w", collection, err)
	}
	return nil
}

func (s *session) Close(ctx context.Context) error { return nil }
