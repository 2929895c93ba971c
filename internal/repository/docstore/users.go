package docstore

import (
	"context"
	"strings"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/storage"
)

type Users struct{ c *collections }

var _ repository.Users = (*Users)(nil)

func (r *Users) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok, err := r.c.users.FindOne(ctx, func(u models.User) bool { return u.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return &u, nil
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok, err := r.c.users.FindOne(ctx, func(u models.User) bool { return strings.EqualFold(u.Email, email) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user", nil)
	}
	return &u, nil
}

func (r *Users) FindByNickname(ctx context.Context, nickname string) (*models.User, error) {
	u, ok, err := r.c.users.FindOne(ctx, func(u models.User) bool { return strings.EqualFold(u.Nickname, nickname) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user", nil)
	}
	return &u, nil
}

func (r *Users) FindAll(ctx context.Context) ([]models.User, error) {
	return r.c.users.Read(ctx)
}

func (r *Users) FindWithPagination(ctx context.Context, q repository.UserQuery) ([]models.User, int, error) {
	if err := q.Page.Validate(); err != nil {
		return nil, 0, err
	}
	matched, err := r.c.users.FindMany(ctx, func(u models.User) bool {
		if u.IsDeleted {
			return false
		}
		return q.Search == "" || storage.ContainsFold(u.Nickname, q.Search) || storage.ContainsFold(u.Email, q.Search)
	})
	if err != nil {
		return nil, 0, err
	}
	storage.SortBy(matched, func(a, b models.User) int { return cmpInt64(a.ID, b.ID) })
	return storage.Paginate(matched, q.Page.Page, q.Limit), len(matched), nil
}

func (r *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.c.users.Exists(ctx, func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *Users) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.c.users.Exists(ctx, func(u models.User) bool { return strings.EqualFold(u.Nickname, nickname) })
}

// Create re-checks uniqueness inside the same locked unit that appends, so two
// racing signups cannot both win.
func (r *Users) Create(ctx context.Context, in models.NewUser) (*models.User, error) {
	var created models.User
	err := r.c.users.Mutate(ctx, func(docs []models.User) ([]models.User, bool, error) {
		for _, u := range docs {
			if strings.EqualFold(u.Email, in.Email) {
				return nil, false, apperr.Conflict("email")
			}
			if strings.EqualFold(u.Nickname, in.Nickname) {
				return nil, false, apperr.Conflict("nickname")
			}
		}
		now := r.c.stamp()
		created = models.User{
			ID:           storage.NextID(docs, userID),
			Email:        in.Email,
			Nickname:     in.Nickname,
			PasswordHash: in.PasswordHash,
			ProfileImage: in.ProfileImage,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return append(docs, created), true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Users) Update(ctx context.Context, id int64, patch models.UserPatch) (bool, error) {
	if patch.Empty() {
		return false, apperr.Validation("patch", "has no fields")
	}
	var found bool
	err := r.c.users.Mutate(ctx, func(docs []models.User) ([]models.User, bool, error) {
		idx := -1
		for i, u := range docs {
			if u.ID == id && !u.IsDeleted {
				idx = i
				break
			}
		}
		if idx < 0 {
			return docs, false, nil
		}
		if patch.Nickname != nil {
			for _, u := range docs {
				if u.ID != id && strings.EqualFold(u.Nickname, *patch.Nickname) {
					return nil, false, apperr.Conflict("nickname")
				}
			}
			docs[idx].Nickname = *patch.Nickname
		}
		if patch.PasswordHash != nil {
			docs[idx].PasswordHash = *patch.PasswordHash
		}
		if patch.ProfileImage != nil {
			img := *patch.ProfileImage
			if img == "" {
				docs[idx].ProfileImage = nil
			} else {
				docs[idx].ProfileImage = &img
			}
		}
		docs[idx].UpdatedAt = r.c.stamp()
		found = true
		return docs, true, nil
	})
	return found && err == nil, err
}

func (r *Users) Delete(ctx context.Context, id int64) (bool, error) {
	return r.c.users.Update(ctx,
		func(u models.User) bool { return u.ID == id && !u.IsDeleted },
		func(u *models.User) {
			now := r.c.stamp()
			u.IsDeleted = true
			u.DeletedAt = &now
			u.UpdatedAt = now
		},
	)
}
