// Package pg implements the repository contract on Postgres via pgx. Each
// collection maps to a migration-managed table (id text primary key,
// ts timestamptz, doc jsonb); the schema is fixed, so Create and Drop report
// repo.ErrUnsupported. See migrations/postgres.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/joshrizzo/MyLib/internal/metrics"
	"github.com/joshrizzo/MyLib/internal/repo"
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service hands out collections and transactional connections over one pool.
type Service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
	now  func() time.Time
}

// Option tweaks a Service.
type Option func(*Service)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService connects to dsn. log may be nil.
func NewService(ctx context.Context, dsn string, log *zap.Logger, opts ...Option) (*Service, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{pool: pool, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewServiceFromPool wraps an existing pool (shared with the host app).
func NewServiceFromPool(pool *pgxpool.Pool, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{pool: pool, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Service) Close()                         { s.pool.Close() }

// PersistentConnection begins a transaction pinning one pooled connection.
// Close commits buffered writes; Rollback aborts. One of the two must run on
// every exit path (defer Rollback after acquiring is the usual shape; it is a
// no-op once Close committed).
func (s *Service) PersistentConnection(ctx context.Context) (*Conn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: begin: %w", err)
	}
	return &Conn{svc: s, tx: tx}, nil
}

// Conn is a scoped unit of work over one transaction.
type Conn struct {
	svc *Service
	tx  pgx.Tx
}

// Close flushes the batch by committing the transaction.
func (c *Conn) Close(ctx context.Context) error {
	if err := c.tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("pg: commit: %w", err)
	}
	return nil
}

// Rollback abandons the batch. Safe to defer alongside Close.
func (c *Conn) Rollback(ctx context.Context) error {
	if err := c.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("pg: rollback: %w", err)
	}
	return nil
}

// Collection binds a record type to one table. The name must match a
// migration-managed table; it is sanitized into the SQL as an identifier.
type Collection[T any, PT repo.Ptr[T]] struct {
	svc   *Service
	table string
	conn  *Conn
}

// NewCollection registers the collection on svc, stored in table name.
func NewCollection[T any, PT repo.Ptr[T]](svc *Service, name string) *Collection[T, PT] {
	return &Collection[T, PT]{svc: svc, table: pgx.Identifier{name}.Sanitize()}
}

// On returns a view bound to conn's transaction.
func (c *Collection[T, PT]) On(conn *Conn) *Collection[T, PT] {
	return &Collection[T, PT]{svc: c.svc, table: c.table, conn: conn}
}

func (c *Collection[T, PT]) q() querier {
	if c.conn != nil {
		return c.conn.tx
	}
	return c.svc.pool
}

func (c *Collection[T, PT]) Search(ctx context.Context) ([]PT, error) {
	rows, err := c.q().Query(ctx, fmt.Sprintf(`SELECT doc FROM %s`, c.table))
	if err != nil {
		return nil, fmt.Errorf("pg: search %s: %w", c.table, err)
	}
	defer rows.Close()

	var items []PT
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("pg: scan %s: %w", c.table, err)
		}
		item := PT(new(T))
		if err := json.Unmarshal(doc, item); err != nil {
			return nil, fmt.Errorf("pg: decode %s record: %w", c.table, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (c *Collection[T, PT]) Save(ctx context.Context, item PT) (PT, error) {
	var zero PT
	q := c.q()

	if item.GetID() == "" {
		item.SetID(uuid.NewString())
	} else {
		var doc []byte
		err := q.QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, c.table), item.GetID()).Scan(&doc)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// first write under a caller-chosen id
		case err != nil:
			return zero, fmt.Errorf("pg: lookup %s: %w", c.table, err)
		default:
			existing := PT(new(T))
			if err := json.Unmarshal(doc, existing); err != nil {
				return zero, fmt.Errorf("pg: decode %s record: %w", c.table, err)
			}
			if repo.Newer(existing.GetTimestamp(), item.GetTimestamp()) {
				metrics.RepoConflicts.WithLabelValues(c.table).Inc()
				return existing, nil
			}
		}
	}

	item.SetTimestamp(c.svc.now())
	doc, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("pg: encode %s record: %w", c.table, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, ts, doc) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET ts = $2, doc = $3
	`, c.table)
	if _, err := q.Exec(ctx, query, item.GetID(), item.GetTimestamp(), doc); err != nil {
		return zero, fmt.Errorf("pg: save %s: %w", c.table, err)
	}
	metrics.RepoSaves.WithLabelValues(c.table).Inc()
	return zero, nil
}

func (c *Collection[T, PT]) Delete(ctx context.Context, item PT) error {
	if _, err := c.q().Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.table), item.GetID()); err != nil {
		return fmt.Errorf("pg: delete %s: %w", c.table, err)
	}
	return nil
}

func (c *Collection[T, PT]) DeleteAll(ctx context.Context) error {
	if _, err := c.q().Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, c.table)); err != nil {
		return fmt.Errorf("pg: delete all %s: %w", c.table, err)
	}
	return nil
}

// Drop refuses: tables are migration-managed on this backend.
func (c *Collection[T, PT]) Drop(ctx context.Context) error {
	return fmt.Errorf("pg: drop %s: %w", c.table, repo.ErrUnsupported)
}

// Create refuses: tables are migration-managed on this backend.
func (c *Collection[T, PT]) Create(ctx context.Context) error {
	return fmt.Errorf("pg: create %s: %w", c.table, repo.ErrUnsupported)
}
