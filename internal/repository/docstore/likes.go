package docstore

import (
	"context"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/storage"
)

type Likes struct{ c *collections }

var _ repository.Likes = (*Likes)(nil)

func (r *Likes) FindByID(ctx context.Context, id int64) (*models.Like, error) {
	l, ok, err := r.c.likes.FindOne(ctx, func(l models.Like) bool { return l.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("like", id)
	}
	return &l, nil
}

func (r *Likes) FindAll(ctx context.Context) ([]models.Like, error) {
	return r.c.likes.Read(ctx)
}

func (r *Likes) Exists(ctx context.Context, postID, userID int64) (bool, error) {
	return r.c.likes.Exists(ctx, func(l models.Like) bool { return l.PostID == postID && l.UserID == userID })
}

func (r *Likes) CountByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.likes.Count(ctx, func(l models.Like) bool { return l.PostID == postID })
}

func (r *Likes) PostIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	likes, err := r.c.likes.FindMany(ctx, func(l models.Like) bool { return l.UserID == userID })
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.PostID)
	}
	return ids, nil
}

func (r *Likes) Create(ctx context.Context, postID, userID int64) (*models.Like, error) {
	batch, err := storage.Lock(ctx, r.c.posts, r.c.likes)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	posts, err := storage.ReadIn(batch, r.c.posts)
	if err != nil {
		return nil, err
	}
	if !postExists(posts, postID) {
		return nil, apperr.NotFound("post", postID)
	}
	docs, err := storage.ReadIn(batch, r.c.likes)
	if err != nil {
		return nil, err
	}
	for _, l := range docs {
		if l.PostID == postID && l.UserID == userID {
			return nil, apperr.Conflict("like")
		}
	}
	created := models.Like{
		ID:        storage.NextID(docs, likeID),
		PostID:    postID,
		UserID:    userID,
		CreatedAt: r.c.stamp(),
	}
	if err := storage.WriteIn(batch, r.c.likes, append(docs, created)); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Likes) Delete(ctx context.Context, postID, userID int64) (bool, error) {
	n, err := r.c.likes.Delete(ctx, func(l models.Like) bool { return l.PostID == postID && l.UserID == userID })
	return n > 0, err
}

func (r *Likes) DeleteByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.likes.Delete(ctx, func(l models.Like) bool { return l.PostID == postID })
}
