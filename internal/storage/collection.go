package storage

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"board/internal/apperr"
	"board/internal/logger"
)

// Collection is the ordered set of documents of one entity kind. Insertion
// order is preserved; callers sort explicitly when they need another order.
type Collection[T any] struct {
	name   string
	engine *Engine
}

func Open[T any](e *Engine, name string) *Collection[T] {
	return &Collection[T]{name: name, engine: e}
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) lockName() string { return c.name }

func (c *Collection[T]) acquire(ctx context.Context) (func(), error) {
	return c.engine.acquire(ctx, c.name)
}

// load must run with the lock held. A missing unit is initialized empty.
func (c *Collection[T]) load() ([]T, error) {
	data, ok, err := c.engine.backend.Load(c.name)
	if err != nil {
		c.engine.log.Error("collection unreadable", logger.Collection(c.name), logger.Err(err))
		return nil, &apperr.CorruptDataError{Collection: c.name, Err: err}
	}
	if !ok {
		if err := c.store(nil); err != nil {
			return nil, err
		}
		return []T{}, nil
	}
	var docs []T
	if err := yaml.Unmarshal(data, &docs); err != nil {
		c.engine.log.Error("collection corrupt", logger.Collection(c.name), logger.Err(err))
		return nil, &apperr.CorruptDataError{Collection: c.name, Err: err}
	}
	if docs == nil {
		docs = []T{}
	}
	return docs, nil
}

// store must run with the lock held.
func (c *Collection[T]) store(docs []T) error {
	if docs == nil {
		docs = []T{}
	}
	data, err := yaml.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.engine.backend.Store(c.name, data); err != nil {
		return fmt.Errorf("store %s: %w", c.name, err)
	}
	c.engine.metrics.writes.WithLabelValues(c.name).Inc()
	return nil
}

// Read returns the current contents.
func (c *Collection[T]) Read(ctx context.Context) ([]T, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.load()
}

// Write replaces the whole collection.
func (c *Collection[T]) Write(ctx context.Context, docs []T) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return c.store(docs)
}

// Mutate runs fn over the current contents under the lock and persists the
// returned slice when fn reports a change. An error from fn aborts without
// writing.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(docs []T) ([]T, bool, error)) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	docs, err := c.load()
	if err != nil {
		return err
	}
	out, changed, err := fn(docs)
	if err != nil || !changed {
		return err
	}
	return c.store(out)
}

func (c *Collection[T]) Append(ctx context.Context, doc T) error {
	return c.Mutate(ctx, func(docs []T) ([]T, bool, error) {
		return append(docs, doc), true, nil
	})
}

// Update applies patch to the first document matching pred and reports
// whether one matched.
func (c *Collection[T]) Update(ctx context.Context, pred func(T) bool, patch func(*T)) (bool, error) {
	var found bool
	err := c.Mutate(ctx, func(docs []T) ([]T, bool, error) {
		for i := range docs {
			if pred(docs[i]) {
				patch(&docs[i])
				found = true
				return docs, true, nil
			}
		}
		return docs, false, nil
	})
	return found && err == nil, err
}

// Delete removes every document matching pred and returns how many went.
func (c *Collection[T]) Delete(ctx context.Context, pred func(T) bool) (int, error) {
	var removed int
	err := c.Mutate(ctx, func(docs []T) ([]T, bool, error) {
		var kept []T
		kept, removed = removeMatching(docs, pred)
		return kept, removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, pred func(T) bool) (T, bool, error) {
	var zero T
	docs, err := c.Read(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, d := range docs {
		if pred(d) {
			return d, true, nil
		}
	}
	return zero, false, nil
}

func (c *Collection[T]) FindMany(ctx context.Context, pred func(T) bool) ([]T, error) {
	docs, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(docs, pred), nil
}

func (c *Collection[T]) Exists(ctx context.Context, pred func(T) bool) (bool, error) {
	_, ok, err := c.FindOne(ctx, pred)
	return ok, err
}

func (c *Collection[T]) Count(ctx context.Context, pred func(T) bool) (int, error) {
	docs, err := c.FindMany(ctx, pred)
	return len(docs), err
}

func removeMatching[T any](docs []T, pred func(T) bool) ([]T, int) {
	kept := docs[:0]
	removed := 0
	for _, d := range docs {
		if pred(d) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	return kept, removed
}
