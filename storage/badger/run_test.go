package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/storage"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunBasics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.AddRun(ctx, &core.Run{
		Pool:             "default",
		EmbeddingVersion: "embeddinggemma-v1",
		Status:           core.StatusQueued,
	})
	if err != nil {
		t.Fatalf("Failed to add run: %v", err)
	}
	if run.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if run.SubmittedAt.IsZero() {
		t.Fatal("Expected SubmittedAt to be set")
	}

	retrieved, err := store.GetRun(ctx, run.Id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if retrieved.Pool != "default" || retrieved.Status != core.StatusQueued {
		t.Fatalf("Unexpected run: %+v", retrieved)
	}
}

func TestRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), 12345)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStatusMonotonicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.AddRun(ctx, &core.Run{
		Pool:             "default",
		EmbeddingVersion: "embeddinggemma-v1",
		Status:           core.StatusQueued,
	})
	if err != nil {
		t.Fatalf("Failed to add run: %v", err)
	}

	run.Status = core.StatusSucceeded
	run.CompletedAt = time.Now().UTC()
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("Failed to update run: %v", err)
	}

	// A terminal run may update counters but never change status.
	run.Succeeded = 5
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("Failed to update terminal run counters: %v", err)
	}

	run.Status = core.StatusFailed
	err = store.UpdateRun(ctx, run)
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestLatestSucceededRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestSucceededRun(ctx, "default")
	if err != nil {
		t.Fatalf("LatestSucceededRun failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("Expected nil baseline, got %+v", latest)
	}

	now := time.Now().UTC()
	finishRun := func(status core.Status, completedAt time.Time) *core.Run {
		run, err := store.AddRun(ctx, &core.Run{
			Pool:             "default",
			EmbeddingVersion: "embeddinggemma-v1",
			Status:           core.StatusQueued,
		})
		if err != nil {
			t.Fatalf("Failed to add run: %v", err)
		}
		run.Status = status
		run.CompletedAt = completedAt
		if err := store.UpdateRun(ctx, run); err != nil {
			t.Fatalf("Failed to update run: %v", err)
		}
		return run
	}

	finishRun(core.StatusSucceeded, now.Add(-2*time.Hour))
	newest := finishRun(core.StatusSucceeded, now.Add(-1*time.Hour))
	finishRun(core.StatusFailed, now)

	latest, err = store.LatestSucceededRun(ctx, "default")
	if err != nil {
		t.Fatalf("LatestSucceededRun failed: %v", err)
	}
	if latest == nil || latest.Id != newest.Id {
		t.Fatalf("Expected run %d, got %+v", newest.Id, latest)
	}

	// Other pools are not visible.
	latest, err = store.LatestSucceededRun(ctx, "other")
	if err != nil {
		t.Fatalf("LatestSucceededRun failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("Expected nil baseline for other pool, got %+v", latest)
	}
}

func TestRunFailedChunksRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.AddRun(ctx, &core.Run{
		Pool:             "default",
		EmbeddingVersion: "embeddinggemma-v1",
		Status:           core.StatusQueued,
	})
	if err != nil {
		t.Fatalf("Failed to add run: %v", err)
	}

	run.Status = core.StatusRunning
	run.FailedChunks = []core.ChunkRef{
		{Collection: "posts", DocId: "a", ChunkIndex: 0},
		{Collection: "posts", DocId: "b", ChunkIndex: 3},
	}
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("Failed to update run: %v", err)
	}

	retrieved, err := store.GetRun(ctx, run.Id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if len(retrieved.FailedChunks) != 2 {
		t.Fatalf("Expected 2 failed chunks, got %d", len(retrieved.FailedChunks))
	}
	if retrieved.FailedChunks[1] != (core.ChunkRef{Collection: "posts", DocId: "b", ChunkIndex: 3}) {
		t.Fatalf("Unexpected chunk ref: %+v", retrieved.FailedChunks[1])
	}
}
