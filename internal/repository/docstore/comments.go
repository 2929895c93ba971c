package docstore

import (
	"context"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/storage"
)

type Comments struct{ c *collections }

var _ repository.Comments = (*Comments)(nil)

func (r *Comments) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	cm, ok, err := r.c.comments.FindOne(ctx, func(c models.Comment) bool { return c.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("comment", id)
	}
	return &cm, nil
}

func (r *Comments) FindAll(ctx context.Context) ([]models.Comment, error) {
	return r.c.comments.Read(ctx)
}

func (r *Comments) FindWithPagination(ctx context.Context, q repository.CommentQuery) ([]models.Comment, int, error) {
	if err := q.Page.Validate(); err != nil {
		return nil, 0, err
	}
	sortMode, err := repository.ParseSort(string(q.Sort), repository.CommentSorts...)
	if err != nil {
		return nil, 0, err
	}
	matched, err := r.c.comments.FindMany(ctx, func(c models.Comment) bool {
		return (q.PostID == 0 || c.PostID == q.PostID) && (q.UserID == 0 || c.UserID == q.UserID)
	})
	if err != nil {
		return nil, 0, err
	}
	storage.SortBy(matched, func(a, b models.Comment) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if sortMode == repository.SortLatest {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
	return storage.Paginate(matched, q.Page.Page, q.Limit), len(matched), nil
}

func (r *Comments) CountByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.comments.Count(ctx, func(c models.Comment) bool { return c.PostID == postID })
}

// Create checks the post under the posts lock so a comment cannot land on a
// post that a concurrent cascade is removing.
func (r *Comments) Create(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	batch, err := storage.Lock(ctx, r.c.posts, r.c.comments)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	posts, err := storage.ReadIn(batch, r.c.posts)
	if err != nil {
		return nil, err
	}
	if !postExists(posts, in.PostID) {
		return nil, apperr.NotFound("post", in.PostID)
	}
	docs, err := storage.ReadIn(batch, r.c.comments)
	if err != nil {
		return nil, err
	}
	now := r.c.stamp()
	created := models.Comment{
		ID:        storage.NextID(docs, commentID),
		PostID:    in.PostID,
		UserID:    in.UserID,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := storage.WriteIn(batch, r.c.comments, append(docs, created)); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Comments) Update(ctx context.Context, id int64, patch models.CommentPatch) (bool, error) {
	if patch.Empty() {
		return false, apperr.Validation("patch", "has no fields")
	}
	return r.c.comments.Update(ctx, func(c models.Comment) bool { return c.ID == id }, func(c *models.Comment) {
		c.Content = *patch.Content
		c.UpdatedAt = r.c.stamp()
	})
}

func (r *Comments) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.c.comments.Delete(ctx, func(c models.Comment) bool { return c.ID == id })
	return n > 0, err
}

func (r *Comments) DeleteByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.comments.Delete(ctx, func(c models.Comment) bool { return c.PostID == postID })
}

func postExists(posts []models.Post, id int64) bool {
	for _, p := range posts {
		if p.ID == id {
			return true
		}
	}
	return false
}
