package storage

import (
	"context"
	"testing"

	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "abc.txt", []byte("payload")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(ctx, "abc.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("got %q", data)
	}

	if err := store.Delete(ctx, "abc.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "abc.txt"); err == nil {
		t.Fatal("expected error after delete")
	}
	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "abc.txt"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
