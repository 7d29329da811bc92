// Package fs implements the docstore contract over a plain directory tree:
// one directory per collection, one JSON document per file. Writes go through
// atomicwrite so a crash never leaves a half-written document behind.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joshrizzo/MyLib/internal/docstore"
	"github.com/joshrizzo/MyLib/internal/util/atomicwrite"
)

// Client is a docstore.Client rooted at one directory.
type Client struct {
	root string
	mu   sync.RWMutex
}

// New verifies root exists (creating it if missing) and returns the client.
func New(root string) (*Client, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("fs: empty root path")
	}
	info, err := os.Stat(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("fs: root path: %w", err)
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("fs: create root %s: %w", root, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("fs: root path is not a directory: %s", root)
	}
	return &Client{root: root}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := os.Stat(c.root)
	return err
}

func (c *Client) Close() error { return nil }

// Session returns a handle sharing the client's lock. The filesystem has no
// connection to pin, so sessions are cheap; Close is a no-op kept for the
// contract.
func (c *Client) Session(ctx context.Context) (docstore.Session, error) {
	return &session{c: c}, nil
}

type session struct{ c *Client }

func (s *session) collDir(collection string) (string, error) {
	if collection == "" || strings.ContainsAny(collection, `/\`) || strings.HasPrefix(collection, ".") {
		return "", fmt.Errorf("fs: invalid collection name %q", collection)
	}
	return filepath.Join(s.c.root, collection), nil
}

func (s *session) docFile(collection, id string) (string, error) {
	dir, err := s.collDir(collection)
	if err != nil {
		return "", err
	}
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("fs: invalid document id %q", id)
	}
	return filepath.Join(dir, id+".json"), nil
}

func (s *session) List(ctx context.Context, collection string) ([][]byte, error) {
	dir, err := s.collDir(collection)
	if err != nil {
		return nil, err
	}

	s.c.mu.RLock()
	defer s.c.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fs: read collection %s: %w", collection, err)
	}

	var docs [][]byte
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue // racing delete
		}
		docs = append(docs, data)
	}
	return docs, nil
}

func (s *session) Get(ctx context.Context, collection, id string) ([]byte, error) {
	file, err := s.docFile(collection, id)
	if err != nil {
		return nil, err
	}

	s.c.mu.RLock()
	defer s.c.mu.RUnlock()

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("fs: read %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *session) Put(ctx context.Context, collection, id string, doc []byte) error {
	file, err := s.docFile(collection, id)
	if err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if err := atomicwrite.WriteFile(file, doc, 0o644); err != nil {
		return fmt.Errorf("fs: write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *session) Delete(ctx context.Context, collection, id string) error {
	file, err := s.docFile(collection, id)
	if err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fs: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *session) DeleteAll(ctx context.Context, collection string) error {
	dir, err := s.collDir(collection)
	if err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fs: read collection %s: %w", collection, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("fs: clear %s: %w", collection, err)
		}
	}
	return nil
}

func (s *session) Drop(ctx context.Context, collection string) error {
	dir, err := s.collDir(collection)
	if err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("fs: drop %s: %w", collection, err)
	}
	return nil
}

func (s *session) Create(ctx context.Context, collection string) error {
	dir, err := s.collDir(collection)
	if err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fs: create %s: %w", collection, err)
	}
	return nil
}

func (s *session) Close(ctx context.Context) error { return nil }
