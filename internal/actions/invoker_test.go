package actions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Kalatco/smartshades/internal/db"
	"github.com/Kalatco/smartshades/internal/ledger"
)

func newTestInvoker(t *testing.T, fn Handler) *Invoker {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	registry := NewRegistry()
	if err := registry.Register("shade_command", fn); err != nil {
		t.Fatal(err)
	}
	return NewInvoker(registry, ledger.New(database.DB))
}

func TestInvoke_Dedupes(t *testing.T) {
	calls := 0
	inv := newTestInvoker(t, func(ctx context.Context, room, command string) error {
		calls++
		return nil
	})

	if err := inv.Invoke(context.Background(), "shade_command", "living_room", "close", "occ/1"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if err := inv.Invoke(context.Background(), "shade_command", "living_room", "close", "occ/1"); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if calls != 1 {
		t.Errorf("callback executed %d times, want 1", calls)
	}
}

func TestInvoke_EmptyKeyAlwaysExecutes(t *testing.T) {
	calls := 0
	inv := newTestInvoker(t, func(ctx context.Context, room, command string) error {
		calls++
		return nil
	})

	inv.Invoke(context.Background(), "shade_command", "living_room", "close", "")
	inv.Invoke(context.Background(), "shade_command", "living_room", "close", "")

	if calls != 2 {
		t.Errorf("callback executed %d times, want 2 (manual calls never dedupe)", calls)
	}
}

func TestInvoke_FailureAllowsRetry(t *testing.T) {
	calls := 0
	inv := newTestInvoker(t, func(ctx context.Context, room, command string) error {
		calls++
		if calls == 1 {
			return errors.New("hub unreachable")
		}
		return nil
	})

	if err := inv.Invoke(context.Background(), "shade_command", "living_room", "close", "occ/1"); err == nil {
		t.Fatal("first attempt should fail")
	}
	// A failed occurrence is not completed and may be retried
	if err := inv.Invoke(context.Background(), "shade_command", "living_room", "close", "occ/1"); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if calls != 2 {
		t.Errorf("callback executed %d times, want 2", calls)
	}
}

func TestInvoke_UnknownCallback(t *testing.T) {
	inv := newTestInvoker(t, func(ctx context.Context, room, command string) error { return nil })

	if err := inv.Invoke(context.Background(), "missing", "living_room", "close", ""); err == nil {
		t.Fatal("unknown callback should error")
	}
	if inv.HasCallback("missing") {
		t.Error("HasCallback should be false for unregistered names")
	}
	if !inv.HasCallback("shade_command") {
		t.Error("HasCallback should be true for registered names")
	}
}
