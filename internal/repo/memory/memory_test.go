package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/joshrizzo/MyLib/internal/repo/memory"
)

type note struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Body      string    `json:"body"`
}

func (n *note) GetID() string             { return n.ID }
func (n *note) SetID(id string)           { n.ID = id }
func (n *note) GetTimestamp() time.Time   { return n.Timestamp }
func (n *note) SetTimestamp(ts time.Time) { n.Timestamp = ts }

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	coll := memory.NewCollection[note](svc, "notes")

	n := &note{Body: "hello"}
	before := time.Now()
	conflict, err := coll.Save(ctx, n)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if conflict != nil {
		t.Fatalf("unexpected conflict on first save: %+v", conflict)
	}
	if n.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if n.Timestamp.Before(before.Add(-time.Second)) {
		t.Fatalf("timestamp not stamped: %v", n.Timestamp)
	}

	items, err := coll.Search(ctx)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].Body != "hello" {
		t.Fatalf("got %d items, want the saved note back", len(items))
	}
}

func TestSaveRejectsStaleWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := memory.NewService(memory.WithClock(func() time.Time { return now }))
	coll := memory.NewCollection[note](svc, "notes")

	n := &note{Body: "v1"}
	if _, err := coll.Save(ctx, n); err != nil {
		t.Fatalf("save v1: %v", err)
	}

	// Another writer bumps the stored copy two seconds ahead.
	now = now.Add(2 * time.Second)
	racing := &note{ID: n.ID, Timestamp: n.Timestamp, Body: "v2"}
	if _, err := coll.Save(ctx, racing); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	// The stale copy still carries the v1 timestamp and must lose.
	stale := &note{ID: n.ID, Timestamp: n.Timestamp, Body: "stale"}
	conflict, err := coll.Save(ctx, stale)
	if err != nil {
		t.Fatalf("save stale: %v", err)
	}
	if conflict == nil {
		t.Fatal("expected the stored copy back as conflict")
	}
	if conflict.Body != "v2" {
		t.Fatalf("conflict body = %q, want the winning copy", conflict.Body)
	}

	items, _ := coll.Search(ctx)
	if len(items) != 1 || items[0].Body != "v2" {
		t.Fatal("store should keep the newer copy untouched")
	}
}

func TestSubSecondSkewIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := memory.NewService(memory.WithClock(func() time.Time { return now }))
	coll := memory.NewCollection[note](svc, "notes")

	n := &note{Body: "v1"}
	if _, err := coll.Save(ctx, n); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Stored copy is 400ms ahead of the caller's view. Whole-second
	// truncation makes the timestamps equal, so the write must go through.
	stale := &note{ID: n.ID, Timestamp: n.Timestamp.Add(-400 * time.Millisecond), Body: "v2"}
	conflict, err := coll.Save(ctx, stale)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if conflict != nil {
		t.Fatal("sub-second skew should not be treated as a conflict")
	}
}

func TestSavedItemsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	coll := memory.NewCollection[note](svc, "notes")

	n := &note{Body: "original"}
	if _, err := coll.Save(ctx, n); err != nil {
		t.Fatalf("save: %v", err)
	}
	n.Body = "mutated after save"

	items, _ := coll.Search(ctx)
	if items[0].Body != "original" {
		t.Fatal("store returned an aliased pointer, not a copy")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	coll := memory.NewCollection[note](svc, "notes")

	n := &note{Body: "x"}
	if _, err := coll.Save(ctx, n); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := coll.Delete(ctx, n); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := coll.Delete(ctx, n); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if err := coll.Delete(ctx, &note{ID: "never-existed"}); err != nil {
		t.Fatalf("deleting an absent record: %v", err)
	}
}

func TestDropAndCreate(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	coll := memory.NewCollection[note](svc, "notes")

	if _, err := coll.Save(ctx, &note{Body: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := coll.Drop(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	items, err := coll.Search(ctx)
	if err != nil {
		t.Fatalf("search after drop: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("dropped collection still has %d items", len(items))
	}
	if err := coll.Create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	coll := memory.NewCollection[note](svc, "notes")

	for _, body := range []string{"a", "b", "c"} {
		if _, err := coll.Save(ctx, &note{Body: body}); err != nil {
			t.Fatalf("save %s: %v", body, err)
		}
	}
	if err := coll.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	items, _ := coll.Search(ctx)
	if len(items) != 0 {
		t.Fatalf("%d items survived DeleteAll", len(items))
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	coll := memory.NewCollection[note](svc, "notes")

	conn, err := svc.PersistentConnection(ctx)
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	if _, err := coll.On(conn).Save(ctx, &note{Body: "scoped"}); err != nil {
		t.Fatalf("save on connection: %v", err)
	}
	items, err := coll.Search(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("search = %d items, %v", len(items), err)
	}
}
