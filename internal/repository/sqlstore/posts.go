package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"board/internal/apperr"
	"board/internal/logger"
	"board/internal/models"
	"board/internal/repository"
)

const postCols = "id, title, content, user_id, views, likes, comments_count, created_at, updated_at"

type Posts struct{ c *conn }

var _ repository.Posts = (*Posts)(nil)

func scanPost(s scanner) (models.Post, error) {
	var p models.Post
	err := s.Scan(&p.ID, &p.Title, &p.Content, &p.UserID, &p.Views, &p.Likes, &p.CommentsCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Posts) FindByID(ctx context.Context, id int64) (*models.Post, error) {
	p, err := scanPost(r.c.db.QueryRowContext(ctx, r.c.q("SELECT "+postCols+" FROM posts WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("post", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Posts) FindAll(ctx context.Context) ([]models.Post, error) {
	rows, err := r.c.db.QueryContext(ctx, "SELECT "+postCols+" FROM posts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Posts) FindWithPagination(ctx context.Context, q repository.PostQuery) ([]models.Post, int, error) {
	mode, err := repository.ParseSort(string(q.Sort), repository.PostSorts...)
	if err != nil {
		return nil, 0, err
	}
	where := " WHERE 1 = 1"
	var args []any
	if q.UserID != 0 {
		where += " AND user_id = ?"
		args = append(args, q.UserID)
	}
	if q.Search != "" {
		where += ` AND (` + r.c.dialect.Fold("title") + ` LIKE ? ESCAPE '\' OR ` + r.c.dialect.Fold("content") + ` LIKE ? ESCAPE '\')`
		pat := likePattern(q.Search)
		args = append(args, pat, pat)
	}
	order := "created_at DESC, id ASC"
	switch mode {
	case repository.SortViews:
		order = "views DESC, id ASC"
	case repository.SortLikes:
		order = "likes DESC, id ASC"
	}
	return pageQuery(ctx, r.c, q.Page, where, args, order, postCols, "posts", scanPost)
}

func (r *Posts) Create(ctx context.Context, in models.NewPost) (*models.Post, error) {
	now := r.c.stamp()
	p := models.Post{Title: in.Title, Content: in.Content, UserID: in.UserID, CreatedAt: now, UpdatedAt: now}
	err := r.c.db.QueryRowContext(ctx, r.c.q(
		`INSERT INTO posts(title, content, user_id, views, likes, comments_count, created_at, updated_at)
		VALUES(?, ?, ?, 0, 0, 0, ?, ?) RETURNING id`),
		p.Title, p.Content, p.UserID, now, now,
	).Scan(&p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Posts) Update(ctx context.Context, id int64, patch models.PostPatch) (bool, error) {
	if patch.Empty() {
		return false, apperr.Validation("patch", "has no fields")
	}
	set := "updated_at = ?"
	args := []any{r.c.stamp()}
	if patch.Title != nil {
		set += ", title = ?"
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		set += ", content = ?"
		args = append(args, *patch.Content)
	}
	n, err := r.c.exec(ctx, r.c.db, "UPDATE posts SET "+set+" WHERE id = ?", append(args, id)...)
	return n > 0, err
}

// Delete runs the comments, likes, post sequence in one transaction; any
// failing step rolls the whole cascade back.
func (r *Posts) Delete(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := r.c.inTx(ctx, func(tx *sql.Tx) error {
		found, err := r.c.exists(ctx, tx, "SELECT 1 FROM posts WHERE id = ?", id)
		if err != nil || !found {
			return err
		}
		if _, err := r.c.exec(ctx, tx, "DELETE FROM comments WHERE post_id = ?", id); err != nil {
			return fmt.Errorf("delete comments of post %d: %w", id, err)
		}
		if _, err := r.c.exec(ctx, tx, "DELETE FROM likes WHERE post_id = ?", id); err != nil {
			return fmt.Errorf("delete likes of post %d: %w", id, err)
		}
		n, err := r.c.exec(ctx, tx, "DELETE FROM posts WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete post %d: %w", id, err)
		}
		removed = n > 0
		return nil
	})
	if err != nil {
		logger.From(ctx).Error("post cascade rolled back", logger.PostID(id), logger.Err(err))
		return false, err
	}
	return removed, nil
}

func (r *Posts) adjust(ctx context.Context, id int64, set string) error {
	n, err := r.c.exec(ctx, r.c.db, "UPDATE posts SET "+set+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("post", id)
	}
	return nil
}

func (r *Posts) IncrementViews(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, "views = views + 1")
}

func (r *Posts) IncrementLikes(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, "likes = likes + 1")
}

func (r *Posts) DecrementLikes(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, "likes = CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")
}

func (r *Posts) IncrementCommentsCount(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, "comments_count = comments_count + 1")
}

func (r *Posts) DecrementCommentsCount(ctx context.Context, id int64) error {
	return r.adjust(ctx, id, "comments_count = CASE WHEN comments_count > 0 THEN comments_count - 1 ELSE 0 END")
}

func (r *Posts) RecountCounters(ctx context.Context, id int64) (*models.Post, error) {
	n, err := r.c.exec(ctx, r.c.db,
		`UPDATE posts SET
			likes = (SELECT COUNT(*) FROM likes WHERE post_id = ?),
			comments_count = (SELECT COUNT(*) FROM comments WHERE post_id = ?)
		WHERE id = ?`, id, id, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("post", id)
	}
	return r.FindByID(ctx, id)
}
