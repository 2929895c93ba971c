// Package docstore implements the repository contracts on top of the
// storage engine's YAML collections.
package docstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"board/internal/logger"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/storage"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
	likesCollection    = "likes"
	tokensCollection   = "refresh_tokens"
)

type Option func(*collections)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *collections) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *collections) { c.log = l }
}

type collections struct {
	users    *storage.Collection[models.User]
	posts    *storage.Collection[models.Post]
	comments *storage.Collection[models.Comment]
	likes    *storage.Collection[models.Like]
	tokens   *storage.Collection[models.RefreshToken]

	now func() time.Time
	log *zap.Logger
}

func (c *collections) stamp() time.Time { return c.now().UTC() }

// New opens every collection on e and returns the bundled repositories.
func New(e *storage.Engine, opts ...Option) *repository.Store {
	c := &collections{
		users:    storage.Open[models.User](e, usersCollection),
		posts:    storage.Open[models.Post](e, postsCollection),
		comments: storage.Open[models.Comment](e, commentsCollection),
		likes:    storage.Open[models.Like](e, likesCollection),
		tokens:   storage.Open[models.RefreshToken](e, tokensCollection),
		now:      time.Now,
		log:      logger.Named("docstore"),
	}
	for _, o := range opts {
		o(c)
	}
	return repository.NewStore(
		&Users{c: c},
		&Posts{c: c},
		&Comments{c: c},
		&Likes{c: c},
		&RefreshTokens{c: c},
		nil,
	)
}

func userID(u models.User) int64       { return u.ID }
func postID(p models.Post) int64       { return p.ID }
func commentID(c models.Comment) int64 { return c.ID }
func likeID(l models.Like) int64       { return l.ID }

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// UnitStatus is the result of reading one collection.
type UnitStatus struct {
	Collection string
	Records    int
	Err        error
}

// Check reads every collection once, in a fixed order, and reports how many
// records each holds or why it could not be read.
func Check(ctx context.Context, e *storage.Engine) []UnitStatus {
	return []UnitStatus{
		checkUnit(ctx, storage.Open[models.User](e, usersCollection)),
		checkUnit(ctx, storage.Open[models.Post](e, postsCollection)),
		checkUnit(ctx, storage.Open[models.Comment](e, commentsCollection)),
		checkUnit(ctx, storage.Open[models.Like](e, likesCollection)),
		checkUnit(ctx, storage.Open[models.RefreshToken](e, tokensCollection)),
	}
}

func checkUnit[T any](ctx context.Context, c *storage.Collection[T]) UnitStatus {
	docs, err := c.Read(ctx)
	return UnitStatus{Collection: c.Name(), Records: len(docs), Err: err}
}
