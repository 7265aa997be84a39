package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocal(t *testing.T) {
	l, err := NewLocal(filepath.Join(t.TempDir(), "index_db"))
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	exerciseStore(t, l)
	exerciseLocker(t, l)
}

func TestLocal_PutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if err := l.Put(context.Background(), "nested/image_vectors.index", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "image_vectors.index" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir entries = %v, want only image_vectors.index", names)
	}
}

func TestLocal_ReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	path := filepath.Join(dir, "build.lock")
	if err := os.WriteFile(path, []byte("crashed-writer"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	old := time.Now().Add(-2 * lockStaleAfter)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := l.Lock(ctx, "build")
	if err != nil {
		t.Fatalf("Lock over stale file failed: %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("lock file not removed on unlock: %v", err)
	}
}

func backdate(t *testing.T, path string, by time.Duration) {
	t.Helper()
	old := time.Now().Add(-by)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
}

func TestLocal_HeldLockIsNotReclaimed(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	ctx := context.Background()
	unlock, err := l.Lock(ctx, "build")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer unlock()
	backdate(t, filepath.Join(dir, "build.lock"), lockStaleAfter+time.Minute)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(short, "build"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Lock error = %v, want ErrLocked while the first holder is alive", err)
	}
}

func TestLocal_LockRefreshesWhileHeld(t *testing.T) {
	defer func(every time.Duration) { lockRefreshEvery = every }(lockRefreshEvery)
	lockRefreshEvery = 10 * time.Millisecond

	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	unlock, err := l.Lock(context.Background(), "build")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	path := filepath.Join(dir, "build.lock")
	backdate(t, path, lockStaleAfter+time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if time.Since(info.ModTime()) < time.Minute {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("lock mtime %v never refreshed", info.ModTime())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("lock file not removed on unlock: %v", err)
	}
}

func TestReclaimLock_LeavesFreshLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.lock")
	if err := os.WriteFile(path, []byte("fresh-writer"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if reclaimLock(path) {
		t.Fatalf("reclaimed a fresh lock")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "fresh-writer" {
		t.Fatalf("lock file = %q, %v; want fresh-writer", data, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want only the lock", len(entries))
	}
}
