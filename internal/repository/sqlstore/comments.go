package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
)

const commentCols = "id, post_id, user_id, content, created_at, updated_at"

type Comments struct{ c *conn }

var _ repository.Comments = (*Comments)(nil)

func scanComment(s scanner) (models.Comment, error) {
	var cm models.Comment
	err := s.Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.Content, &cm.CreatedAt, &cm.UpdatedAt)
	return cm, err
}

func (r *Comments) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	cm, err := scanComment(r.c.db.QueryRowContext(ctx, r.c.q("SELECT "+commentCols+" FROM comments WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("comment", id)
	}
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func (r *Comments) FindAll(ctx context.Context) ([]models.Comment, error) {
	rows, err := r.c.db.QueryContext(ctx, "SELECT "+commentCols+" FROM comments ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Comment{}
	for rows.Next() {
		cm, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

func (r *Comments) FindWithPagination(ctx context.Context, q repository.CommentQuery) ([]models.Comment, int, error) {
	mode, err := repository.ParseSort(string(q.Sort), repository.CommentSorts...)
	if err != nil {
		return nil, 0, err
	}
	where := " WHERE 1 = 1"
	var args []any
	if q.PostID != 0 {
		where += " AND post_id = ?"
		args = append(args, q.PostID)
	}
	if q.UserID != 0 {
		where += " AND user_id = ?"
		args = append(args, q.UserID)
	}
	order := "created_at ASC, id ASC"
	if mode == repository.SortLatest {
		order = "created_at DESC, id ASC"
	}
	return pageQuery(ctx, r.c, q.Page, where, args, order, commentCols, "comments", scanComment)
}

func (r *Comments) CountByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.count(ctx, r.c.db, "SELECT COUNT(*) FROM comments WHERE post_id = ?", postID)
}

func (r *Comments) Create(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	now := r.c.stamp()
	cm := models.Comment{PostID: in.PostID, UserID: in.UserID, Content: in.Content, CreatedAt: now, UpdatedAt: now}
	err := r.c.inTx(ctx, func(tx *sql.Tx) error {
		found, err := r.c.exists(ctx, tx, "SELECT 1 FROM posts WHERE id = ?", in.PostID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("post", in.PostID)
		}
		return tx.QueryRowContext(ctx, r.c.q(
			"INSERT INTO comments(post_id, user_id, content, created_at, updated_at) VALUES(?, ?, ?, ?, ?) RETURNING id"),
			cm.PostID, cm.UserID, cm.Content, now, now,
		).Scan(&cm.ID)
	})
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func (r *Comments) Update(ctx context.Context, id int64, patch models.CommentPatch) (bool, error) {
	if patch.Empty() {
		return false, apperr.Validation("patch", "has no fields")
	}
	n, err := r.c.exec(ctx, r.c.db, "UPDATE comments SET content = ?, updated_at = ? WHERE id = ?", *patch.Content, r.c.stamp(), id)
	return n > 0, err
}

func (r *Comments) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.c.exec(ctx, r.c.db, "DELETE FROM comments WHERE id = ?", id)
	return n > 0, err
}

func (r *Comments) DeleteByPost(ctx context.Context, postID int64) (int, error) {
	return r.c.exec(ctx, r.c.db, "DELETE FROM comments WHERE post_id = ?", postID)
}
