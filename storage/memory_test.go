package storage

import (
	"context"
	"testing"
	"time"

	"crosspost/types"
)

func TestSelectionAddRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// select p1, select p2, deselect p1 -> exactly ["p2"]
	if err := s.SelectPlatform(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectPlatform(ctx, "p2"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeselectPlatform(ctx, "p1"); err != nil {
		t.Fatal(err)
	}

	got, err := s.SelectedPlatforms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "p2" {
		t.Fatalf("selection = %v; want [p2]", got)
	}
}

func TestSelectPlatformIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if err := s.SelectPlatform(ctx, "p1"); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.SelectedPlatforms(ctx)
	if len(got) != 1 {
		t.Fatalf("duplicate selection entries: %v", got)
	}
}

func TestInflightSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if snap, _ := s.InflightSnapshot(ctx); snap != nil {
		t.Fatalf("fresh store has snapshot: %+v", snap)
	}
	item := &types.SyncHistoryItem{ID: "h1", Title: "T", Timestamp: time.Now()}
	if err := s.SaveInflightSnapshot(ctx, item); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.InflightSnapshot(ctx)
	if snap == nil || snap.ID != "h1" {
		t.Fatalf("snapshot not persisted: %+v", snap)
	}
	if err := s.ClearInflightSnapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if snap, _ := s.InflightSnapshot(ctx); snap != nil {
		t.Fatalf("snapshot survived clear: %+v", snap)
	}
}

func TestMemoryRateLimiterWindow(t *testing.T) {
	l := NewMemoryRateLimiter(10 * time.Second)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	ok, err := l.Allow(context.Background())
	if err != nil || !ok {
		t.Fatalf("first pass blocked: ok=%v err=%v", ok, err)
	}
	ok, _ = l.Allow(context.Background())
	if ok {
		t.Fatal("second pass inside window allowed")
	}
	now = now.Add(11 * time.Second)
	ok, _ = l.Allow(context.Background())
	if !ok {
		t.Fatal("pass after window still blocked")
	}
}
