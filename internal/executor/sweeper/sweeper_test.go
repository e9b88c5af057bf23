package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeRecorder struct {
	mu      sync.Mutex
	sweeps  int
	removed int
	errs    int
}

func (f *fakeRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, duration time.Duration) {
}

func (f *fakeRecorder) ObserveRun(ctx context.Context, languageID string, outcome string, duration time.Duration) {
}

func (f *fakeRecorder) ObserveRejected(ctx context.Context, languageID string, reason string) {}

func (f *fakeRecorder) ObserveSweep(ctx context.Context, removed int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	f.removed += removed
	if err != nil {
		f.errs++
	}
}

func (f *fakeRecorder) snapshot() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps, f.removed
}

func makeEntry(t *testing.T, root, name string, modTime time.Time, dir bool) string {
	t.Helper()
	path := filepath.Join(root, name)
	if dir {
		if err := os.MkdirAll(filepath.Join(path, "sub"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(path, "sub", "Main.java"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	} else if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	oldDir := makeEntry(t, root, uuid.NewString(), now.Add(-2*time.Hour), true)
	oldDir2 := makeEntry(t, root, uuid.NewString(), now.Add(-90*time.Minute), true)
	fresh := makeEntry(t, root, uuid.NewString(), now.Add(-10*time.Minute), true)

	rec := &fakeRecorder{}
	s, err := New(Config{Root: root, Retention: time.Hour}, rec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	removed, err := s.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	for _, p := range []string{oldDir, oldDir2} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed", p)
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh entry must survive: %v", err)
	}
	if sweeps, total := rec.snapshot(); sweeps != 1 || total != 2 {
		t.Fatalf("unexpected metrics: sweeps=%d removed=%d", sweeps, total)
	}
}

func TestSweepLeavesForeignEntries(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-24 * time.Hour)
	foreignDir := makeEntry(t, root, "build-cache", old, true)
	foreignFile := makeEntry(t, root, "notes.txt", old, false)
	uuidFile := makeEntry(t, root, uuid.NewString(), old, false)
	job := makeEntry(t, root, uuid.NewString(), old, true)

	s, err := New(Config{Root: root, Retention: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	removed, err := s.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(job); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected stale job dir removed")
	}
	for _, p := range []string{foreignDir, foreignFile, uuidFile} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s must survive: %v", p, err)
		}
	}
}

func TestSweepMissingRoot(t *testing.T) {
	s, err := New(Config{Root: filepath.Join(t.TempDir(), "missing")}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	removed, err := s.Sweep(context.Background(), time.Now())
	if err != nil || removed != 0 {
		t.Fatalf("Sweep on missing root = %d, %v", removed, err)
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{Root: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.cfg.Interval != DefaultInterval || s.cfg.Retention != DefaultRetention {
		t.Fatalf("unexpected defaults: %+v", s.cfg)
	}
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	root := t.TempDir()
	stale := makeEntry(t, root, uuid.NewString(), time.Now().Add(-time.Hour), true)

	rec := &fakeRecorder{}
	s, err := New(Config{Root: root, Interval: 20 * time.Millisecond, Retention: time.Minute}, rec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start(context.Background())
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(stale); errors.Is(err, os.ErrNotExist) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper loop did not remove stale entry")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	sweeps, _ := rec.snapshot()
	time.Sleep(60 * time.Millisecond)
	if after, _ := rec.snapshot(); after != sweeps {
		t.Fatalf("sweeper kept running after Stop: %d -> %d", sweeps, after)
	}
	s.Stop()
}

func TestStopOnParentCancel(t *testing.T) {
	s, err := New(Config{Root: t.TempDir(), Interval: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}
}
