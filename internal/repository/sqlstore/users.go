package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
)

const userCols = "id, email, nickname, password_hash, profile_image, is_deleted, deleted_at, created_at, updated_at"

type Users struct{ c *conn }

var _ repository.Users = (*Users)(nil)

func scanUser(s scanner) (models.User, error) {
	var (
		u       models.User
		img     sql.NullString
		deleted sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &img, &u.IsDeleted, &deleted, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return u, err
	}
	if img.Valid {
		u.ProfileImage = &img.String
	}
	if deleted.Valid {
		t := deleted.Time
		u.DeletedAt = &t
	}
	return u, nil
}

func (r *Users) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	row := r.c.db.QueryRowContext(ctx, r.c.q("SELECT "+userCols+" FROM users WHERE "+where), arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", nil)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Users) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := r.findOne(ctx, "id = ?", id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("user", id)
	}
	return u, err
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "lower(email) = lower(?)", email)
}

func (r *Users) FindByNickname(ctx context.Context, nickname string) (*models.User, error) {
	return r.findOne(ctx, "lower(nickname) = lower(?)", nickname)
}

func (r *Users) FindAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.c.db.QueryContext(ctx, "SELECT "+userCols+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Users) FindWithPagination(ctx context.Context, q repository.UserQuery) ([]models.User, int, error) {
	where := " WHERE is_deleted = ?"
	args := []any{false}
	if q.Search != "" {
		where += ` AND (` + r.c.dialect.Fold("nickname") + ` LIKE ? ESCAPE '\' OR ` + r.c.dialect.Fold("email") + ` LIKE ? ESCAPE '\')`
		pat := likePattern(q.Search)
		args = append(args, pat, pat)
	}
	return pageQuery(ctx, r.c, q.Page, where, args, "id ASC", userCols, "users", scanUser)
}

func (r *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.c.exists(ctx, r.c.db, "SELECT 1 FROM users WHERE lower(email) = lower(?)", email)
}

func (r *Users) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.c.exists(ctx, r.c.db, "SELECT 1 FROM users WHERE lower(nickname) = lower(?)", nickname)
}

func (r *Users) Create(ctx context.Context, in models.NewUser) (*models.User, error) {
	now := r.c.stamp()
	u := models.User{
		Email:        in.Email,
		Nickname:     in.Nickname,
		PasswordHash: in.PasswordHash,
		ProfileImage: in.ProfileImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := r.c.inTx(ctx, func(tx *sql.Tx) error {
		if taken, err := r.c.exists(ctx, tx, "SELECT 1 FROM users WHERE lower(email) = lower(?)", in.Email); err != nil {
			return err
		} else if taken {
			return apperr.Conflict("email")
		}
		if taken, err := r.c.exists(ctx, tx, "SELECT 1 FROM users WHERE lower(nickname) = lower(?)", in.Nickname); err != nil {
			return err
		} else if taken {
			return apperr.Conflict("nickname")
		}
		return tx.QueryRowContext(ctx, r.c.q(
			`INSERT INTO users(email, nickname, password_hash, profile_image, is_deleted, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			u.Email, u.Nickname, u.PasswordHash, nullString(u.ProfileImage), false, now, now,
		).Scan(&u.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictFrom(err)
		}
		return nil, err
	}
	return &u, nil
}

func (r *Users) Update(ctx context.Context, id int64, patch models.UserPatch) (bool, error) {
	if patch.Empty() {
		return false, apperr.Validation("patch", "has no fields")
	}
	set := "updated_at = ?"
	args := []any{r.c.stamp()}
	if patch.Nickname != nil {
		set += ", nickname = ?"
		args = append(args, *patch.Nickname)
	}
	if patch.PasswordHash != nil {
		set += ", password_hash = ?"
		args = append(args, *patch.PasswordHash)
	}
	if patch.ProfileImage != nil {
		set += ", profile_image = ?"
		img := patch.ProfileImage
		if *img == "" {
			img = nil
		}
		args = append(args, nullString(img))
	}
	args = append(args, id, false)
	n, err := r.c.exec(ctx, r.c.db, "UPDATE users SET "+set+" WHERE id = ? AND is_deleted = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, conflictFrom(err)
		}
		return false, err
	}
	return n > 0, nil
}

func (r *Users) Delete(ctx context.Context, id int64) (bool, error) {
	now := r.c.stamp()
	n, err := r.c.exec(ctx, r.c.db,
		"UPDATE users SET is_deleted = ?, deleted_at = ?, updated_at = ? WHERE id = ? AND is_deleted = ?",
		true, now, now, id, false)
	return n > 0, err
}
