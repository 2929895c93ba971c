package docstore

import (
	"context"
	"fmt"

	"board/internal/apperr"
	"board/internal/logger"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/storage"
)

type Posts struct{ c *collections }

var _ repository.Posts = (*Posts)(nil)

func (r *Posts) FindByID(ctx context.Context, id int64) (*models.Post, error) {
	p, ok, err := r.c.posts.FindOne(ctx, func(p models.Post) bool { return p.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("post", id)
	}
	return &p, nil
}

func (r *Posts) FindAll(ctx context.Context) ([]models.Post, error) {
	return r.c.posts.Read(ctx)
}

func (r *Posts) FindWithPagination(ctx context.Context, q repository.PostQuery) ([]models.Post, int, error) {
	if err := q.Page.Validate(); err != nil {
		return nil, 0, err
	}
	sortMode, err := repository.ParseSort(string(q.Sort), repository.PostSorts...)
	if err != nil {
		return nil, 0, err
	}
	matched, err := r.c.posts.FindMany(ctx, func(p models.Post) bool {
		if q.UserID != 0 && p.UserID != q.UserID {
			return false
		}
		return q.Search == "" || storage.ContainsFold(p.Title, q.Search) || storage.ContainsFold(p.Content, q.Search)
	})
	if err != nil {
		return nil, 0, err
	}
	storage.SortBy(matched, postOrder(sortMode))
	return storage.Paginate(matched, q.Page.Page, q.Limit), len(matched), nil
}

// postOrder sorts descending on the mode's key and breaks ties by id ascending.
func postOrder(mode repository.SortMode) func(a, b models.Post) int {
	return func(a, b models.Post) int {
		var c int
		switch mode {
		case repository.SortViews:
			c = cmpInt64(b.Views, a.Views)
		case repository.SortLikes:
			c = cmpInt64(b.Likes, a.Likes)
		default:
			c = b.CreatedAt.Compare(a.CreatedAt)
		}
		if c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	}
}

func (r *Posts) Create(ctx context.Context, in models.NewPost) (*models.Post, error) {
	var created models.Post
	err := r.c.posts.Mutate(ctx, func(docs []models.Post) ([]models.Post, bool, error) {
		now := r.c.stamp()
		created = models.Post{
			ID:        storage.NextID(docs, postID),
			Title:     in.Title,
			Content:   in.Content,
			UserID:    in.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return append(docs, created), true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Posts) Update(ctx context.Context, id int64, patch models.PostPatch) (bool, error) {
	if patch.Empty() {
		return false, apperr.Validation("patch", "has no fields")
	}
	return r.c.posts.Update(ctx, func(p models.Post) bool { return p.ID == id }, func(p *models.Post) {
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Content != nil {
			p.Content = *patch.Content
		}
		p.UpdatedAt = r.c.stamp()
	})
}

// Delete holds the comments, likes and posts locks for the whole cascade, so
// no other caller can add a dependent between the steps.
func (r *Posts) Delete(ctx context.Context, id int64) (bool, error) {
	batch, err := storage.Lock(ctx, r.c.comments, r.c.likes, r.c.posts)
	if err != nil {
		return false, err
	}
	defer batch.Release()

	posts, err := storage.ReadIn(batch, r.c.posts)
	if err != nil {
		return false, err
	}
	exists := false
	for _, p := range posts {
		if p.ID == id {
			exists = true
			break
		}
	}
	if !exists {
		return false, nil
	}

	log := logger.From(ctx).With(logger.Op("posts.delete"), logger.PostID(id))

	// Every dependent unit must load before the first write.
	if _, err := storage.ReadIn(batch, r.c.comments); err != nil {
		log.Error("cascade not started; comments unreadable", logger.Err(err))
		return false, fmt.Errorf("delete comments of post %d: %w", id, err)
	}
	if _, err := storage.ReadIn(batch, r.c.likes); err != nil {
		log.Error("cascade not started; likes unreadable", logger.Err(err))
		return false, fmt.Errorf("delete likes of post %d: %w", id, err)
	}

	comments, err := storage.DeleteIn(batch, r.c.comments, func(c models.Comment) bool { return c.PostID == id })
	if err != nil {
		log.Error("cascade stopped at comments; post kept", logger.Err(err))
		return false, fmt.Errorf("delete comments of post %d: %w", id, err)
	}
	likes, err := storage.DeleteIn(batch, r.c.likes, func(l models.Like) bool { return l.PostID == id })
	if err != nil {
		log.Error("cascade stopped at likes; post kept", logger.Count(comments), logger.Err(err))
		return false, fmt.Errorf("delete likes of post %d: %w", id, err)
	}
	n, err := storage.DeleteIn(batch, r.c.posts, func(p models.Post) bool { return p.ID == id })
	if err != nil {
		log.Error("cascade removed dependents but not the post", logger.Err(err))
		return false, fmt.Errorf("delete post %d: %w", id, err)
	}
	log.Debug("post deleted", logger.Count(comments+likes))
	return n > 0, nil
}

func (r *Posts) adjust(ctx context.Context, id int64, fn func(p *models.Post)) error {
	ok, err := r.c.posts.Update(ctx, func(p models.Post) bool { return p.ID == id }, fn)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("post", id)
	}
	return nil
}

func (r *Posts) IncrementViews(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, func(p *models.Post) { p.Views++ })
}

func (r *Posts) IncrementLikes(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, func(p *models.Post) { p.Likes++ })
}

func (r *Posts) DecrementLikes(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, func(p *models.Post) { p.Likes = max(p.Likes-1, 0) })
}

func (r *Posts) IncrementCommentsCount(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, func(p *models.Post) { p.CommentsCount++ })
}

func (r *Posts) DecrementCommentsCount(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, func(p *models.Post) { p.CommentsCount = max(p.CommentsCount-1, 0) })
}

func (r *Posts) RecountCounters(ctx context.Context, id int64) (*models.Post, error) {
	batch, err := storage.Lock(ctx, r.c.comments, r.c.likes, r.c.posts)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	posts, err := storage.ReadIn(batch, r.c.posts)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range posts {
		if posts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperr.NotFound("post", id)
	}
	comments, err := storage.ReadIn(batch, r.c.comments)
	if err != nil {
		return nil, err
	}
	likes, err := storage.ReadIn(batch, r.c.likes)
	if err != nil {
		return nil, err
	}
	posts[idx].CommentsCount = int64(len(storage.Filter(comments, func(c models.Comment) bool { return c.PostID == id })))
	posts[idx].Likes = int64(len(storage.Filter(likes, func(l models.Like) bool { return l.PostID == id })))
	if err := storage.WriteIn(batch, r.c.posts, posts); err != nil {
		return nil, err
	}
	out := posts[idx]
	return &out, nil
}
