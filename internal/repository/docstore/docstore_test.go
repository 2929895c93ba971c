package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/repository/repotest"
	"board/internal/storage"
)

func newMemoryStore(t *testing.T) *repository.Store {
	e := storage.NewEngine(storage.NewMemoryBackend(), storage.Options{LockTimeout: 2 * time.Second, Logger: zap.NewNop()})
	return New(e, WithLogger(zap.NewNop()))
}

func newFileStore(t *testing.T) (*repository.Store, string) {
	dir := t.TempDir()
	fb, err := storage.NewFileBackend(dir, time.Minute)
	require.NoError(t, err)
	e := storage.NewEngine(fb, storage.Options{LockTimeout: 10 * time.Second, Logger: zap.NewNop()})
	return New(e, WithLogger(zap.NewNop())), dir
}

func TestContractMemory(t *testing.T) {
	repotest.Run(t, newMemoryStore)
}

func TestContractFile(t *testing.T) {
	repotest.Run(t, func(t *testing.T) *repository.Store {
		s, _ := newFileStore(t)
		return s
	})
}

func TestConcurrentSignupsSameEmail(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	const n = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Users.Create(ctx, models.NewUser{
				Email:        "race@example.com",
				Nickname:     fmt.Sprintf("racer%d", i),
				PasswordHash: "h",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
	all, err := s.Users.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentCountersAreExact(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	u, err := s.Users.Create(ctx, models.NewUser{Email: "a@x.com", Nickname: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	p, err := s.Posts.Create(ctx, models.NewPost{Title: "hot", Content: "post", UserID: u.ID})
	require.NoError(t, err)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Posts.IncrementViews(ctx, p.ID))
		}()
	}
	wg.Wait()

	got, err := s.Posts.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.Views)
}

func TestCascadeStopsOnCorruptDependent(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	u, err := s.Users.Create(ctx, models.NewUser{Email: "a@x.com", Nickname: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	p, err := s.Posts.Create(ctx, models.NewPost{Title: "t", Content: "c", UserID: u.ID})
	require.NoError(t, err)
	_, err = s.Comments.Create(ctx, models.NewComment{PostID: p.ID, UserID: u.ID, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, likesCollection+".yaml"), []byte("[oops"), 0o644))

	ok, err := s.Posts.Delete(ctx, p.ID)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, apperr.IsCorrupt(err))

	_, err = s.Posts.FindByID(ctx, p.ID)
	assert.NoError(t, err, "the post survives a failed cascade")
	n, err := s.Comments.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "nothing was removed before the failure")
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	open := func() *repository.Store {
		fb, err := storage.NewFileBackend(dir, time.Minute)
		require.NoError(t, err)
		return New(storage.NewEngine(fb, storage.Options{Logger: zap.NewNop()}), WithLogger(zap.NewNop()))
	}
	ctx := context.Background()

	first := open()
	u, err := first.Users.Create(ctx, models.NewUser{Email: "a@x.com", Nickname: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := open()
	got, err := second.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Nickname)
	assert.True(t, got.CreatedAt.Equal(u.CreatedAt))
}

func TestWithClockStampsRecords(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := storage.NewEngine(storage.NewMemoryBackend(), storage.Options{Logger: zap.NewNop()})
	s := New(e, WithClock(func() time.Time { return fixed }), WithLogger(zap.NewNop()))

	u, err := s.Users.Create(context.Background(), models.NewUser{Email: "a@x.com", Nickname: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, fixed, u.CreatedAt)
	assert.Equal(t, fixed, u.UpdatedAt)
}

func TestCheckReportsEachCollection(t *testing.T) {
	dir := t.TempDir()
	fb, err := storage.NewFileBackend(dir, time.Minute)
	require.NoError(t, err)
	e := storage.NewEngine(fb, storage.Options{Logger: zap.NewNop()})
	s := New(e, WithLogger(zap.NewNop()))
	ctx := context.Background()

	_, err = s.Users.Create(ctx, models.NewUser{Email: "a@x.com", Nickname: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, commentsCollection+".yaml"), []byte("{not: [a list"), 0o644))

	got := Check(ctx, e)
	require.Len(t, got, 5)
	byName := map[string]UnitStatus{}
	for _, st := range got {
		byName[st.Collection] = st
	}
	assert.NoError(t, byName[usersCollection].Err)
	assert.Equal(t, 1, byName[usersCollection].Records)
	assert.NoError(t, byName[postsCollection].Err, "missing units read as empty")
	assert.True(t, apperr.IsCorrupt(byName[commentsCollection].Err))
}
