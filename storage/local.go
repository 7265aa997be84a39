package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Local implements Store on top of a local directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir. The directory is created
// (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute directory backing the store.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Get reads the file stored under key.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.resolve(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: get %s: %w", key, ErrNotFound)
	}
	return data, err
}

// Put writes data to a temporary file next to the target and renames it
// into place.
func (l *Local) Put(_ context.Context, key string, data []byte) error {
	full := l.resolve(key)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

// Delete removes the file stored under key.
func (l *Local) Delete(_ context.Context, key string) error {
	err := os.Remove(l.resolve(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether a file is stored under key.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(l.resolve(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Lock takes an exclusive lock file named name+".lock" in the store root.
// The file's mtime is renewed while the lock is held; a lock file left
// untouched for two minutes is treated as abandoned and replaced.
func (l *Local) Lock(ctx context.Context, name string) (func() error, error) {
	path := l.resolve(name + ".lock")
	owner := uuid.NewString()
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(ErrLocked, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(owner)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.Join(werr, cerr)
			}
			release := hold(owner, func() error { return touchLock(path, owner) })
			return func() error {
				rerr := release()
				return errors.Join(rerr, l.unlock(path, owner))
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if reclaimLock(path) {
			continue
		}
		if err := waitRetry(ctx); err != nil {
			return nil, err
		}
	}
}

func readLock(path string) (string, fs.FileInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	return string(data), info, nil
}

// touchLock renews the lock's mtime if owner still holds it.
func touchLock(path, owner string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("storage: refresh lock %s: %w", path, err)
	}
	if string(data) != owner {
		return fmt.Errorf("storage: lock %s taken over by %s", path, data)
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}

// reclaimLock removes an abandoned lock file. The file is first moved aside
// so that a lock re-created or renewed in the meantime is put back instead
// of removed.
func reclaimLock(path string) bool {
	owner, info, err := readLock(path)
	if err != nil || isLiveOwner(owner) || time.Since(info.ModTime()) <= lockStaleAfter {
		return false
	}
	aside := path + ".stale-" + uuid.NewString()
	if err := os.Rename(path, aside); err != nil {
		return false
	}
	got, ginfo, err := readLock(aside)
	if err == nil && got == owner && time.Since(ginfo.ModTime()) > lockStaleAfter {
		_ = os.Remove(aside)
		return true
	}
	// Link does not replace an existing file, so a newer lock at path wins.
	_ = os.Link(aside, path)
	_ = os.Remove(aside)
	return false
}

func (l *Local) unlock(path, owner string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(data) != owner {
		return nil
	}
	return os.Remove(path)
}

var (
	_ Store  = (*Local)(nil)
	_ Locker = (*Local)(nil)
)
