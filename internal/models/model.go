package models

import "time"

type User struct {
	ID           int64      `json:"id" yaml:"id"`
	Email        string     `json:"email" yaml:"email"`
	Nickname     string     `json:"nickname" yaml:"nickname"`
	PasswordHash string     `json:"-" yaml:"password_hash"`
	ProfileImage *string    `json:"profile_image,omitempty" yaml:"profile_image,omitempty"`
	IsDeleted    bool       `json:"-" yaml:"is_deleted"`
	DeletedAt    *time.Time `json:"-" yaml:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Live reports whether the account can still act.
func (u *User) Live() bool { return u != nil && !u.IsDeleted }

type NewUser struct {
	Email        string
	Nickname     string
	PasswordHash string
	ProfileImage *string
}

// UserPatch lists the mutable user fields. Nil means unchanged.
type UserPatch struct {
	Nickname     *string
	PasswordHash *string
	ProfileImage *string
}

func (p UserPatch) Empty() bool {
	return p.Nickname == nil && p.PasswordHash == nil && p.ProfileImage == nil
}

type Post struct {
	ID            int64     `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Content       string    `json:"content" yaml:"content"`
	UserID        int64     `json:"user_id" yaml:"user_id"`
	Views         int64     `json:"views" yaml:"views"`
	Likes         int64     `json:"likes" yaml:"likes"`
	CommentsCount int64     `json:"comments_count" yaml:"comments_count"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

type NewPost struct {
	Title   string
	Content string
	UserID  int64
}

// PostPatch allows title and content only.
type PostPatch struct {
	Title   *string
	Content *string
}

func (p PostPatch) Empty() bool { return p.Title == nil && p.Content == nil }

type Comment struct {
	ID        int64     `json:"id" yaml:"id"`
	PostID    int64     `json:"post_id" yaml:"post_id"`
	UserID    int64     `json:"user_id" yaml:"user_id"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

type NewComment struct {
	PostID  int64
	UserID  int64
	Content string
}

type CommentPatch struct {
	Content *string
}

func (p CommentPatch) Empty() bool { return p.Content == nil }

// Like is immutable; (PostID, UserID) is unique.
type Like struct {
	ID        int64     `json:"id" yaml:"id"`
	PostID    int64     `json:"post_id" yaml:"post_id"`
	UserID    int64     `json:"user_id" yaml:"user_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RefreshToken is stored by digest; the plaintext only ever leaves the
// process in the login/refresh response.
type RefreshToken struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    int64     `json:"user_id" yaml:"user_id"`
	TokenHash string    `json:"-" yaml:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func (t *RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
