package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
)

type Likes struct{ c *conn }

var _ repository.Likes = (*Likes)(nil)

func scanLike(s scanner) (models.Like, error) {
	var l models.Like
	err := s.Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt)
	return l, err
}

func (r *Likes) FindByID(ctx context.Context, id int64) (*models.Like, error) {
	l, err := scanLike(r.c.db.QueryRowContext(ctx, r.c.q("SELECT id, post_id, user_id, created_at FROM likes WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("like", id)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Likes) FindAll(ctx context.Context) ([]models.Like, error) {
	rows, err := r.c.db.QueryContext(ctx, "SELECT id, post_id, user_id, created_at FROM likes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Like{}
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Likes) Exists(ctx context.Context, postID, userID int64) (bool, error) {
	return r.c.exists(ctx, r.c.db, "SELECT 1 FROM likes WHERE post_id = ? AND user_id = ?", postID, userID)
}

func (r *Likes) CountByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.count(ctx, r.c.db, "SELECT COUNT(*) FROM likes WHERE post_id = ?", postID)
}

func (r *Likes) PostIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.c.db.QueryContext(ctx, r.c.q("SELECT post_id FROM likes WHERE user_id = ? ORDER BY id"), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Likes) Create(ctx context.Context, postID, userID int64) (*models.Like, error) {
	l := models.Like{PostID: postID, UserID: userID, CreatedAt: r.c.stamp()}
	err := r.c.inTx(ctx, func(tx *sql.Tx) error {
		found, err := r.c.exists(ctx, tx, "SELECT 1 FROM posts WHERE id = ?", postID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("post", postID)
		}
		dup, err := r.c.exists(ctx, tx, "SELECT 1 FROM likes WHERE post_id = ? AND user_id = ?", postID, userID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict("like")
		}
		return tx.QueryRowContext(ctx, r.c.q(
			"INSERT INTO likes(post_id, user_id, created_at) VALUES(?, ?, ?) RETURNING id"),
			postID, userID, l.CreatedAt,
		).Scan(&l.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictFrom(err)
		}
		return nil, err
	}
	return &l, nil
}

func (r *Likes) Delete(ctx context.Context, postID, userID int64) (bool, error) {
	n, err := r.c.exec(ctx, r.c.db, "DELETE FROM likes WHERE post_id = ? AND user_id = ?", postID, userID)
	return n > 0, err
}

func (r *Likes) DeleteByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.exec(ctx, r.c.db, "DELETE FROM likes WHERE post_id = ?", postID)
}
