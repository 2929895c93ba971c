// Package repository defines the per-entity contracts shared by the document
// store (docstore) and the relational store (sqlstore).
//
// Lookups of a missing identifier return *apperr.NotFoundError. Uniqueness
// violations return *apperr.ConflictError and leave the collection unchanged.
// Update rejects an empty patch with *apperr.ValidationError and reports
// whether a record matched. Delete reports whether a record was removed, so a
// second call returns false.
package repository

import (
	"context"

	"board/internal/models"
)

type Users interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByNickname(ctx context.Context, nickname string) (*models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
	FindWithPagination(ctx context.Context, q UserQuery) ([]models.User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	Create(ctx context.Context, in models.NewUser) (*models.User, error)
	Update(ctx context.Context, id int64, patch models.UserPatch) (bool, error)
	// Delete marks the user deleted. Email and nickname stay reserved.
	Delete(ctx context.Context, id int64) (bool, error)
}

type Posts interface {
	FindByID(ctx context.Context, id int64) (*models.Post, error)
	FindAll(ctx context.Context) ([]models.Post, error)
	FindWithPagination(ctx context.Context, q PostQuery) ([]models.Post, int, error)
	Create(ctx context.Context, in models.NewPost) (*models.Post, error)
	Update(ctx context.Context, id int64, patch models.PostPatch) (bool, error)
	// Delete removes the post's comments, then its likes, then the post. If
	// a dependent step fails the post is kept and the error returned.
	Delete(ctx context.Context, id int64) (bool, error)

	IncrementViews(ctx context.Context, id int64) error
	IncrementLikes(ctx context.Context, id int64) error
	DecrementLikes(ctx context.Context, id int64) error
	IncrementCommentsCount(ctx context.Context, id int64) error
	DecrementCommentsCount(ctx context.Context, id int64) error
	// RecountCounters recomputes likes and comments_count from the
	// dependent records.
	RecountCounters(ctx context.Context, id int64) (*models.Post, error)
}

type Comments interface {
	FindByID(ctx context.Context, id int64) (*models.Comment, error)
	FindAll(ctx context.Context) ([]models.Comment, error)
	FindWithPagination(ctx context.Context, q CommentQuery) ([]models.Comment, int, error)
	CountByPost(ctx context.Context, postID int64) (int, error)
	Create(ctx context.Context, in models.NewComment) (*models.Comment, error)
	Update(ctx context.Context, id int64, patch models.CommentPatch) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteByPost(ctx context.Context, postID int64) (int, error)
}

type Likes interface {
	FindByID(ctx context.Context, id int64) (*models.Like, error)
	FindAll(ctx context.Context) ([]models.Like, error)
	Exists(ctx context.Context, postID, userID int64) (bool, error)
	CountByPost(ctx context.Context, postID int64) (int, error)
	PostIDsByUser(ctx context.Context, userID int64) ([]int64, error)
	Create(ctx context.Context, postID, userID int64) (*models.Like, error)
	Delete(ctx context.Context, postID, userID int64) (bool, error)
	DeleteByPost(ctx context.Context, postID int64) (int, error)
}

type RefreshTokens interface {
	// Replace stores rec and removes every other token of rec.UserID in the
	// same unit, leaving at most one live refresh token per user.
	Replace(ctx context.Context, rec models.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	DeleteByHash(ctx context.Context, hash string) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) (int, error)
}

// Store bundles one backend's repositories.
type Store struct {
	Users         Users
	Posts         Posts
	Comments      Comments
	Likes         Likes
	RefreshTokens RefreshTokens

	closer func() error
}

func NewStore(users Users, posts Posts, comments Comments, likes Likes, tokens RefreshTokens, closer func() error) *Store {
	return &Store{Users: users, Posts: posts, Comments: comments, Likes: likes, RefreshTokens: tokens, closer: closer}
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
