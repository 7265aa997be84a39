package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is wrapped by Get when the key does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrLocked is returned by Lock when the context ends before the lock
	// could be acquired.
	ErrLocked = errors.New("storage: lock held by another writer")
)

const (
	lockRetryDelay = 50 * time.Millisecond
	lockStaleAfter = 2 * time.Minute
)

// lockRefreshEvery is how often a held lock renews its timestamp. It stays
// well under lockStaleAfter.
var lockRefreshEvery = lockStaleAfter / 4

// liveOwners holds the owner tokens of locks held by this process. A lock
// whose owner is live is never reclaimed, whatever its timestamp says.
var liveOwners sync.Map

// Store is a minimal keyed blob store.
//
// Keys are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the full content stored under key. A missing key yields an
	// error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the content stored under key. Readers never observe a
	// partially written value.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Locker is implemented by stores that can serialize writers.
type Locker interface {
	// Lock blocks until the named lock is held or ctx ends. The returned
	// function releases the lock.
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}

// waitRetry sleeps for the retry delay or returns ErrLocked once ctx ends.
func waitRetry(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.Join(ErrLocked, ctx.Err())
	case <-time.After(lockRetryDelay):
		return nil
	}
}

// hold registers owner as live and renews the lock through refresh until the
// returned release func is called. release reports the last refresh failure,
// if the most recent refresh failed.
func hold(owner string, refresh func() error) (release func() error) {
	liveOwners.Store(owner, struct{}{})
	every := lockRefreshEvery
	done := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		var last error
		for {
			select {
			case <-done:
				finished <- last
				return
			case <-ticker.C:
				last = refresh()
			}
		}
	}()
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			close(done)
			err = <-finished
			liveOwners.Delete(owner)
		})
		return err
	}
}

func isLiveOwner(owner string) bool {
	_, ok := liveOwners.Load(owner)
	return ok
}
