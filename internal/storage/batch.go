package storage

import (
	"context"
	"fmt"
	"sort"
)

// Locker is implemented by every Collection.
type Locker interface {
	lockName() string
	acquire(ctx context.Context) (func(), error)
}

// Batch holds several collection locks at once. Inside a batch, use ReadIn,
// WriteIn and DeleteIn instead of the Collection methods, which would wait on
// the lock the batch already owns.
type Batch struct {
	held     map[string]bool
	releases []func()
}

// Lock acquires the locks of all given collections in name order, so two
// batches over overlapping collections cannot deadlock. On failure nothing
// stays held.
func Lock(ctx context.Context, units ...Locker) (*Batch, error) {
	sorted := append([]Locker(nil), units...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].lockName() < sorted[j].lockName() })

	b := &Batch{held: map[string]bool{}}
	for _, u := range sorted {
		if b.held[u.lockName()] {
			continue
		}
		release, err := u.acquire(ctx)
		if err != nil {
			b.Release()
			return nil, err
		}
		b.held[u.lockName()] = true
		b.releases = append(b.releases, release)
	}
	return b, nil
}

// Release drops the locks in reverse acquisition order. Safe to call twice.
func (b *Batch) Release() {
	for i := len(b.releases) - 1; i >= 0; i-- {
		b.releases[i]()
	}
	b.releases = nil
	b.held = map[string]bool{}
}

func (b *Batch) check(name string) error {
	if !b.held[name] {
		return fmt.Errorf("collection %s is not held by this batch", name)
	}
	return nil
}

func ReadIn[T any](b *Batch, c *Collection[T]) ([]T, error) {
	if err := b.check(c.name); err != nil {
		return nil, err
	}
	return c.load()
}

func WriteIn[T any](b *Batch, c *Collection[T], docs []T) error {
	if err := b.check(c.name); err != nil {
		return err
	}
	return c.store(docs)
}

// DeleteIn removes matching documents from a held collection and writes it
// back only when something was removed.
func DeleteIn[T any](b *Batch, c *Collection[T], pred func(T) bool) (int, error) {
	docs, err := ReadIn(b, c)
	if err != nil {
		return 0, err
	}
	kept, removed := removeMatching(docs, pred)
	if removed == 0 {
		return 0, nil
	}
	if err := c.store(kept); err != nil {
		return 0, err
	}
	return removed, nil
}
