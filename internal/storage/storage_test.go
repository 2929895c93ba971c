package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board/internal/apperr"
)

type item struct {
	ID    int64  `yaml:"id"`
	Label string `yaml:"label"`
}

func itemID(i item) int64 { return i.ID }

func newFileEngine(t *testing.T, timeout time.Duration) (*Engine, *FileBackend) {
	t.Helper()
	fb, err := NewFileBackend(t.TempDir(), time.Minute)
	require.NoError(t, err)
	return NewEngine(fb, Options{LockTimeout: timeout, Logger: zap.NewNop()}), fb
}

func TestReadMissingUnitInitializesEmpty(t *testing.T) {
	e, fb := newFileEngine(t, time.Second)
	items := Open[item](e, "items")

	docs, err := items.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = os.Stat(filepath.Join(fb.Dir(), "items.yaml"))
	assert.NoError(t, err, "first access should create the unit")
}

func TestCorruptUnitIsReportedNotDropped(t *testing.T) {
	e, fb := newFileEngine(t, time.Second)
	path := filepath.Join(fb.Dir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not: [a, sequence"), 0o644))

	items := Open[item](e, "items")
	_, err := items.Read(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsCorrupt(err))

	err = items.Append(context.Background(), item{ID: 1})
	assert.True(t, apperr.IsCorrupt(err))

	raw, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{not: [a, sequence", string(raw), "corrupt unit must be left untouched")
}

func TestWriteThenReadPreservesOrder(t *testing.T) {
	e := NewEngine(NewMemoryBackend(), Options{Logger: zap.NewNop()})
	items := Open[item](e, "items")
	ctx := context.Background()

	in := []item{{ID: 3, Label: "c"}, {ID: 1, Label: "a"}, {ID: 2, Label: "b"}}
	require.NoError(t, items.Write(ctx, in))

	out, err := items.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUpdateDeleteFind(t *testing.T) {
	e := NewEngine(NewMemoryBackend(), Options{Logger: zap.NewNop()})
	items := Open[item](e, "items")
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, items.Append(ctx, item{ID: i, Label: "x"}))
	}

	ok, err := items.Update(ctx, func(i item) bool { return i.ID == 2 }, func(i *item) { i.Label = "two" })
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = items.Update(ctx, func(i item) bool { return i.ID == 42 }, func(i *item) { i.Label = "nope" })
	require.NoError(t, err)
	assert.False(t, ok)

	got, found, err := items.FindOne(ctx, func(i item) bool { return i.ID == 2 })
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "two", got.Label)

	n, err := items.Delete(ctx, func(i item) bool { return i.ID == 2 })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = items.Delete(ctx, func(i item) bool { return i.ID == 2 })
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second delete is a no-op")

	many, err := items.FindMany(ctx, func(i item) bool { return i.Label == "x" })
	require.NoError(t, err)
	assert.Len(t, many, 2)

	exists, err := items.Exists(ctx, func(i item) bool { return i.ID == 3 })
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	e, _ := newFileEngine(t, 10*time.Second)
	items := Open[item](e, "items")
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- items.Append(ctx, item{ID: id})
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	docs, err := items.Read(ctx)
	require.NoError(t, err)
	require.Len(t, docs, n)

	seen := map[int64]bool{}
	for _, d := range docs {
		assert.False(t, seen[d.ID], "duplicate id %d", d.ID)
		seen[d.ID] = true
	}
}

func TestLockTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewEngine(NewMemoryBackend(), Options{LockTimeout: 50 * time.Millisecond, Registerer: reg, Logger: zap.NewNop()})
	items := Open[item](e, "items")
	others := Open[item](e, "others")
	ctx := context.Background()

	b, err := Lock(ctx, items)
	require.NoError(t, err)
	defer b.Release()

	start := time.Now()
	_, err = items.Read(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsLockTimeout(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.lockTimeouts.WithLabelValues("items")))

	// Locks are per collection.
	_, err = others.Read(ctx)
	assert.NoError(t, err)
}

func TestCanceledContextIsNotATimeout(t *testing.T) {
	e := NewEngine(NewMemoryBackend(), Options{LockTimeout: time.Second, Logger: zap.NewNop()})
	items := Open[item](e, "items")

	b, err := Lock(context.Background(), items)
	require.NoError(t, err)
	defer b.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = items.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperr.IsLockTimeout(err))
}

func TestFileMarkerBlocksSecondEngine(t *testing.T) {
	dir := t.TempDir()
	fb1, err := NewFileBackend(dir, time.Hour)
	require.NoError(t, err)
	fb2, err := NewFileBackend(dir, time.Hour)
	require.NoError(t, err)

	e1 := NewEngine(fb1, Options{LockTimeout: time.Second, Logger: zap.NewNop()})
	e2 := NewEngine(fb2, Options{LockTimeout: 50 * time.Millisecond, Logger: zap.NewNop()})

	b, err := Lock(context.Background(), Open[item](e1, "items"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "items.lock"))
	require.NoError(t, err)

	_, err = Open[item](e2, "items").Read(context.Background())
	assert.True(t, apperr.IsLockTimeout(err))

	b.Release()
	_, err = os.Stat(filepath.Join(dir, "items.lock"))
	assert.True(t, os.IsNotExist(err))

	_, err = Open[item](e2, "items").Read(context.Background())
	assert.NoError(t, err)
}

func TestStaleMarkerIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "items.lock")
	require.NoError(t, os.WriteFile(marker, []byte("999999"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(marker, old, old))

	fb, err := NewFileBackend(dir, time.Minute)
	require.NoError(t, err)
	e := NewEngine(fb, Options{LockTimeout: time.Second, Logger: zap.NewNop()})

	_, err = Open[item](e, "items").Read(context.Background())
	assert.NoError(t, err)
}

func TestReleaseAfterReclaimKeepsNewOwnersMarker(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "items.lock")
	fb, err := NewFileBackend(dir, time.Minute)
	require.NoError(t, err)

	releaseOld, err := fb.Acquire(context.Background(), "items")
	require.NoError(t, err)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(marker, old, old))

	releaseNew, err := fb.Acquire(context.Background(), "items")
	require.NoError(t, err)
	owned, err := os.ReadFile(marker)
	require.NoError(t, err)

	// The reclaimed holder finishing late must not free the slot.
	releaseOld()
	still, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, owned, still)

	releaseNew()
	_, err = os.Stat(marker)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "reclaim leaves no side files")
}

func TestReclaimSkipsFreshMarker(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "items.lock")
	fb, err := NewFileBackend(dir, time.Minute)
	require.NoError(t, err)

	release, err := fb.Acquire(context.Background(), "items")
	require.NoError(t, err)
	defer release()

	assert.False(t, fb.reclaimStale(marker))
	_, err = os.Stat(marker)
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = fb.Acquire(ctx, "items")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBatchSpansCollections(t *testing.T) {
	e := NewEngine(NewMemoryBackend(), Options{Logger: zap.NewNop()})
	a := Open[item](e, "a")
	b := Open[item](e, "b")
	ctx := context.Background()

	require.NoError(t, a.Write(ctx, []item{{ID: 1}, {ID: 2}}))
	require.NoError(t, b.Write(ctx, []item{{ID: 1}}))

	batch, err := Lock(ctx, b, a, b)
	require.NoError(t, err)

	n, err := DeleteIn(batch, a, func(i item) bool { return i.ID == 1 })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, WriteIn(batch, b, nil))

	other := Open[item](e, "c")
	_, err = ReadIn(batch, other)
	assert.Error(t, err, "c is not held")
	batch.Release()
	batch.Release()

	docs, err := a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: 2}}, docs)
	docs, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMutateErrorDoesNotWrite(t *testing.T) {
	e := NewEngine(NewMemoryBackend(), Options{Logger: zap.NewNop()})
	items := Open[item](e, "items")
	ctx := context.Background()
	require.NoError(t, items.Append(ctx, item{ID: 1}))

	boom := apperr.Conflict("label")
	err := items.Mutate(ctx, func(docs []item) ([]item, bool, error) {
		return append(docs, item{ID: 2}), true, boom
	})
	assert.ErrorIs(t, err, boom)

	docs, err := items.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestQueryHelpers(t *testing.T) {
	docs := []item{{ID: 5}, {ID: 2}, {ID: 9}, {ID: 1}, {ID: 7}}
	assert.Equal(t, int64(10), NextID(docs, itemID))
	assert.Equal(t, int64(1), NextID([]item{}, itemID))

	SortBy(docs, func(a, b item) int { return int(a.ID - b.ID) })
	assert.Equal(t, []item{{ID: 1}, {ID: 2}}, Paginate(docs, 1, 2))
	assert.Equal(t, []item{{ID: 9}}, Paginate(docs, 3, 2))
	assert.Empty(t, Paginate(docs, 4, 2))
	assert.Empty(t, Paginate(docs, 0, 2))

	assert.True(t, ContainsFold("Hello World", "WORLD"))
	assert.True(t, ContainsFold("100% sure", "0%"))
	assert.False(t, ContainsFold("hello", "h.llo"))
}
