package session

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	sess := New("call-1", now)
	sess.AppendTurn(contractx.RoleUser, "hello", now)
	sess.AppendRouting(RoutingDecision{Intent: contractx.IntentOrder, Confidence: 0.8, At: now})

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "call-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Turns) != 1 || loaded.Turns[0].Content != "hello" {
		t.Fatalf("turns = %+v", loaded.Turns)
	}
	if loaded.ActiveIntent != contractx.IntentOrder {
		t.Fatalf("active intent = %s, want order", loaded.ActiveIntent)
	}

	// The store hands back a copy; mutating it must not touch the stored state.
	loaded.AppendTurn(contractx.RoleAssistant, "hi", now)
	again, err := store.Load(ctx, "call-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Turns) != 1 {
		t.Fatalf("stored session mutated through a loaded copy: %d turns", len(again.Turns))
	}
}

func TestMemoryStoreNotFoundAndDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	sess := New("call-2", time.Now())
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "call-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "call-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsInvalidSessions(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, New("", time.Now())); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}

	bad := New("call-3", time.Now())
	bad.ActiveIntent = contractx.Intent("smalltalk")
	if err := store.Save(ctx, bad); err == nil {
		t.Fatal("save accepted an unknown active intent")
	}
}

func TestWindowBoundsTranscript(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sess := New("call-4", now)
	for i := 0; i < 10; i++ {
		sess.AppendTurn(contractx.RoleUser, "turn", now)
	}

	if got := len(sess.Window(6)); got != 6 {
		t.Fatalf("window(6) = %d turns, want 6", got)
	}
	if got := len(sess.Window(0)); got != 10 {
		t.Fatalf("window(0) = %d turns, want the whole transcript", got)
	}
	if got := len(sess.Window(20)); got != 10 {
		t.Fatalf("window(20) = %d turns, want all 10", got)
	}
}
