package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Backend persists one encoded unit per collection name.
type Backend interface {
	// Load returns the stored unit. ok is false when nothing was stored yet.
	Load(name string) (data []byte, ok bool, err error)
	// Store replaces the unit atomically.
	Store(name string, data []byte) error
	// Acquire takes the cross-process advisory marker for name.
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// FileBackend keeps each collection in <dir>/<name>.yaml with a sibling
// <name>.lock marker held while a caller owns the collection.
type FileBackend struct {
	dir        string
	staleAfter time.Duration
	poll       time.Duration
}

// NewFileBackend creates dir if needed. Markers older than staleAfter are
// assumed to belong to a dead process and reclaimed; zero disables reclaiming.
func NewFileBackend(dir string, staleAfter time.Duration) (*FileBackend, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, staleAfter: staleAfter, poll: 10 * time.Millisecond}, nil
}

func (b *FileBackend) Dir() string { return b.dir }

func (b *FileBackend) unitPath(name string) string   { return filepath.Join(b.dir, name+".yaml") }
func (b *FileBackend) markerPath(name string) string { return filepath.Join(b.dir, name+".lock") }

func (b *FileBackend) Load(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.unitPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, true, err
	}
	return data, true, nil
}

func (b *FileBackend) Store(name string, data []byte) error {
	return atomicWriteFile(b.unitPath(name), data, 0o644)
}

// Acquire creates the marker exclusively and stamps it with a token unique
// to this acquisition. Release removes the marker only while it still holds
// that token, so a caller whose marker was reclaimed as stale cannot drop a
// newer holder's marker.
func (b *FileBackend) Acquire(ctx context.Context, name string) (func(), error) {
	marker := b.markerPath(name)
	token := strconv.Itoa(os.Getpid()) + " " + uuid.NewString()
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(token)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(marker)
				return nil, fmt.Errorf("lock marker %s: %w", name, errors.Join(werr, cerr))
			}
			return func() { releaseMarker(marker, token) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("lock marker %s: %w", name, err)
		}
		if b.staleAfter > 0 && b.reclaimStale(marker) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// reclaimStale moves a stale marker aside under a private name and checks
// the moved file again. Rename is atomic, so of several waiters that saw the
// same stale marker only one moves it. If what got moved turns out to be a
// fresh marker (its owner replaced the stale one in between), it is linked
// back into place when the slot is still free.
func (b *FileBackend) reclaimStale(marker string) bool {
	info, err := os.Stat(marker)
	if err != nil || time.Since(info.ModTime()) <= b.staleAfter {
		return false
	}
	aside := marker + ".stale-" + uuid.NewString()
	if err := os.Rename(marker, aside); err != nil {
		return false
	}
	defer func() { _ = os.Remove(aside) }()
	moved, err := os.Stat(aside)
	if err != nil || time.Since(moved.ModTime()) > b.staleAfter {
		return true
	}
	// Link fails if another marker took the slot meanwhile.
	_ = os.Link(aside, marker)
	return false
}

func releaseMarker(marker, token string) {
	data, err := os.ReadFile(marker)
	if err != nil || string(data) != token {
		return
	}
	_ = os.Remove(marker)
}

// atomicWriteFile writes to a temp file in the same directory, fsyncs it and
// renames it over path, so readers see either the old or the new unit.
func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		// Windows refuses to rename over an open destination.
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}

// MemoryBackend keeps encoded units in memory. Used by tests and the
// "memory" storage driver.
type MemoryBackend struct {
	mu    sync.Mutex
	units map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{units: map[string][]byte{}}
}

func (b *MemoryBackend) Load(name string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.units[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (b *MemoryBackend) Store(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units[name] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
