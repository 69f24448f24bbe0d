package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &Run{
		Archive:    "games/demo.apk",
		ProjectDir: "games/demo",
		Status:     StatusOK,
		Total:      5, OK: 4, Error: 1,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Files: []FileRecord{
			{File: "game/b.rpyc", State: "error", Error: "boom", Duration: 1500 * time.Millisecond},
			{File: "game/a.rpyc", State: "bad_header"},
		},
	}
	if err := s.Record(ctx, run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Fatalf("Record() should assign a uuid, got %q", run.ID)
	}

	got, err := s.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Archive != run.Archive || got.Total != 5 || got.OK != 4 || got.Error != 1 || got.Status != StatusOK {
		t.Fatalf("Get() = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if len(got.Files) != 2 || got.Files[0].File != "game/a.rpyc" || got.Files[1].Duration != 1500*time.Millisecond {
		t.Fatalf("Files = %+v", got.Files)
	}
}

func TestGetUnknown(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentAndPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r := &Run{Archive: "a.apk", Status: StatusFailed, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(Recent) = %d", len(recent))
	}
	if !recent[0].StartedAt.Equal(base.Add(4 * time.Hour)) {
		t.Fatalf("newest first expected, got %v", recent[0].StartedAt)
	}

	n, err := s.Prune(ctx, base.Add(2*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("Prune() = %d, %v", n, err)
	}
	all, _ := s.Recent(ctx, 100)
	if len(all) != 3 {
		t.Fatalf("len after prune = %d", len(all))
	}
}
