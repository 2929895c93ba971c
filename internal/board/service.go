// Package board implements the community board operations on top of the
// repositories and the auth package: accounts, posts, comments and likes.
//
// Inputs are validated before anything is persisted and passwords are hashed
// before any repository call. Counter updates that follow a dependent write
// are compensated when they fail.
package board

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"board/internal/apperr"
	"board/internal/auth"
	"board/internal/logger"
	"board/internal/models"
	"board/internal/repository"
	"board/internal/storage"
)

// ErrBadCredentials is the single reason given for every failed login.
var ErrBadCredentials = errors.New("email or password incorrect")

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

type Service struct {
	store  *repository.Store
	hasher auth.Hasher
	policy auth.Policy
	tokens *auth.Tokens
	log    *zap.Logger

	// dummyHash keeps login timing flat for unknown emails.
	dummyHash string
}

func New(store *repository.Store, hasher auth.Hasher, policy auth.Policy, tokens *auth.Tokens, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		hasher: hasher,
		policy: policy,
		tokens: tokens,
		log:    logger.Named("board"),
	}
	for _, o := range opts {
		o(s)
	}
	h, err := hasher.Hash("timing-equalizer-0")
	if err != nil {
		return nil, err
	}
	s.dummyHash = h
	return s, nil
}

// Page is one page of a listing plus the totals needed to render pagination.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

func newPage[T any](items []T, total int, p repository.Page) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: repository.TotalPages(total, p.Limit),
	}
}

// withDefaults fills a zero page or limit.
func withDefaults(p repository.Page) repository.Page {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = repository.DefaultLimit
	}
	return p
}

// Accounts

type SignupInput struct {
	Email        string
	Nickname     string
	Password     string
	ProfileImage *string
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	nick := strings.TrimSpace(in.Nickname)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateNickname(nick); err != nil {
		return nil, err
	}
	if err := s.policy.Validate(in.Password); err != nil {
		return nil, err
	}
	if err := validateProfileImage(in.ProfileImage); err != nil {
		return nil, err
	}
	if taken, err := s.store.Users.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("email")
	}
	if taken, err := s.store.Users.ExistsByNickname(ctx, nick); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("nickname")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	img := in.ProfileImage
	if img != nil && *img == "" {
		img = nil
	}
	u, err := s.store.Users.Create(ctx, models.NewUser{Email: email, Nickname: nick, PasswordHash: hash, ProfileImage: img})
	if err != nil {
		return nil, err
	}
	s.log.Info("user signed up", logger.UserID(u.ID))
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*auth.Pair, *models.User, error) {
	u, err := s.store.Users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil && !apperr.IsNotFound(err) {
		return nil, nil, err
	}
	if u == nil || !u.Live() {
		s.hasher.Verify(password, s.dummyHash)
		return nil, nil, apperr.Unauthorized(ErrBadCredentials)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, nil, apperr.Unauthorized(ErrBadCredentials)
	}
	pair, err := s.tokens.IssuePair(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return pair, u, nil
}

// Refresh rotates a refresh token. Tokens of deleted accounts are dropped.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.Pair, error) {
	pair, uid, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Users.FindByID(ctx, uid)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if !u.Live() {
		if err := s.tokens.RevokeAllForUser(ctx, uid); err != nil {
			s.log.Warn("revoke after dead refresh failed", logger.UserID(uid), logger.Err(err))
		}
		return nil, apperr.Unauthorized(apperr.ErrNoLiveIdentity)
	}
	return pair, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

func (s *Service) Profile(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Live() {
		return nil, apperr.NotFound("user", userID)
	}
	return u, nil
}

type ProfileInput struct {
	Nickname     *string
	Password     *string
	ProfileImage *string // empty clears the image
}

// UpdateProfile applies the given fields. Changing the password signs the
// user out everywhere.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	var patch models.UserPatch
	if in.Nickname != nil {
		nick := strings.TrimSpace(*in.Nickname)
		if err := validateNickname(nick); err != nil {
			return nil, err
		}
		existing, err := s.store.Users.FindByNickname(ctx, nick)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, apperr.Conflict("nickname")
		}
		patch.Nickname = &nick
	}
	if err := validateProfileImage(in.ProfileImage); err != nil {
		return nil, err
	}
	patch.ProfileImage = in.ProfileImage
	if in.Password != nil {
		if err := s.policy.Validate(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		return nil, apperr.Validation("", "nothing to update")
	}

	ok, err := s.store.Users.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user", userID)
	}
	if patch.PasswordHash != nil {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return s.store.Users.FindByID(ctx, userID)
}

// DeleteAccount soft-deletes the user and revokes every refresh token. Posts
// and comments stay.
func (s *Service) DeleteAccount(ctx context.Context, userID int64) error {
	ok, err := s.store.Users.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user", userID)
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	s.log.Info("account deleted", logger.UserID(userID))
	return nil
}

// Posts

type PostInput struct {
	Title   string
	Content string
}

func (s *Service) CreatePost(ctx context.Context, userID int64, in PostInput) (*models.Post, error) {
	title, content := strings.TrimSpace(in.Title), strings.TrimSpace(in.Content)
	if err := validateText("title", title, maxTitle); err != nil {
		return nil, err
	}
	if err := validateText("content", content, maxPostContent); err != nil {
		return nil, err
	}
	return s.store.Posts.Create(ctx, models.NewPost{Title: title, Content: content, UserID: userID})
}

// GetPost counts a view and returns the post including it.
func (s *Service) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	if err := s.store.Posts.IncrementViews(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.Posts.FindByID(ctx, postID)
}

// PostView is a post as seen by one viewer.
type PostView struct {
	models.Post
	Liked bool `json:"liked"`
}

// ListPosts pages through posts. viewerID 0 is an anonymous viewer.
func (s *Service) ListPosts(ctx context.Context, viewerID int64, q repository.PostQuery) (*Page[PostView], error) {
	q.Page = withDefaults(q.Page)
	q.Search = strings.TrimSpace(q.Search)
	posts, total, err := s.store.Posts.FindWithPagination(ctx, q)
	if err != nil {
		return nil, err
	}
	liked := map[int64]bool{}
	if viewerID != 0 {
		ids, err := s.store.Likes.PostIDsByUser(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			liked[id] = true
		}
	}
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = PostView{Post: p, Liked: liked[p.ID]}
	}
	return newPage(views, total, q.Page), nil
}

type PostPatchInput struct {
	Title   *string
	Content *string
}

func (s *Service) UpdatePost(ctx context.Context, userID, postID int64, in PostPatchInput) (*models.Post, error) {
	if err := s.ownPost(ctx, userID, postID); err != nil {
		return nil, err
	}
	var patch models.PostPatch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateText("title", title, maxTitle); err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if err := validateText("content", content, maxPostContent); err != nil {
			return nil, err
		}
		patch.Content = &content
	}
	if patch.Empty() {
		return nil, apperr.Validation("", "nothing to update")
	}
	ok, err := s.store.Posts.Update(ctx, postID, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("post", postID)
	}
	return s.store.Posts.FindByID(ctx, postID)
}

// DeletePost removes the post with its comments and likes.
func (s *Service) DeletePost(ctx context.Context, userID, postID int64) error {
	if err := s.ownPost(ctx, userID, postID); err != nil {
		return err
	}
	ok, err := s.store.Posts.Delete(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("post", postID)
	}
	return nil
}

func (s *Service) ownPost(ctx context.Context, userID, postID int64) error {
	p, err := s.store.Posts.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return apperr.Forbidden()
	}
	return nil
}

// Comments

func (s *Service) AddComment(ctx context.Context, userID, postID int64, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if err := validateText("content", content, maxComment); err != nil {
		return nil, err
	}
	c, err := s.store.Comments.Create(ctx, models.NewComment{PostID: postID, UserID: userID, Content: content})
	if err != nil {
		return nil, err
	}
	if err := s.store.Posts.IncrementCommentsCount(ctx, postID); err != nil {
		log := logger.From(ctx).With(logger.Op("comments.add"), logger.PostID(postID))
		if _, cerr := s.store.Comments.Delete(ctx, c.ID); cerr != nil {
			log.Error("comment left without counter", logger.Err(cerr))
		} else {
			log.Warn("comment withdrawn after counter failure", logger.Err(err))
		}
		return nil, err
	}
	return c, nil
}

// ListComments pages through the comments of an existing post.
func (s *Service) ListComments(ctx context.Context, q repository.CommentQuery) (*Page[models.Comment], error) {
	if _, err := s.store.Posts.FindByID(ctx, q.PostID); err != nil {
		return nil, err
	}
	q.Page = withDefaults(q.Page)
	items, total, err := s.store.Comments.FindWithPagination(ctx, q)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, q.Page), nil
}

func (s *Service) EditComment(ctx context.Context, userID, commentID int64, content string) (*models.Comment, error) {
	if _, err := s.ownComment(ctx, userID, commentID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if err := validateText("content", content, maxComment); err != nil {
		return nil, err
	}
	ok, err := s.store.Comments.Update(ctx, commentID, models.CommentPatch{Content: &content})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("comment", commentID)
	}
	return s.store.Comments.FindByID(ctx, commentID)
}

func (s *Service) DeleteComment(ctx context.Context, userID, commentID int64) error {
	c, err := s.ownComment(ctx, userID, commentID)
	if err != nil {
		return err
	}
	ok, err := s.store.Comments.Delete(ctx, commentID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("comment", commentID)
	}
	err = s.store.Posts.DecrementCommentsCount(ctx, c.PostID)
	if apperr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		s.recount(ctx, c.PostID, "comments.delete", err)
		return err
	}
	return nil
}

func (s *Service) ownComment(ctx context.Context, userID, commentID int64) (*models.Comment, error) {
	c, err := s.store.Comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperr.Forbidden()
	}
	return c, nil
}

// Likes

func (s *Service) LikePost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	if _, err := s.store.Likes.Create(ctx, postID, userID); err != nil {
		return nil, err
	}
	if err := s.store.Posts.IncrementLikes(ctx, postID); err != nil {
		log := logger.From(ctx).With(logger.Op("likes.add"), logger.PostID(postID))
		if _, lerr := s.store.Likes.Delete(ctx, postID, userID); lerr != nil {
			log.Error("like left without counter", logger.Err(lerr))
		} else {
			log.Warn("like withdrawn after counter failure", logger.Err(err))
		}
		return nil, err
	}
	return s.store.Posts.FindByID(ctx, postID)
}

func (s *Service) UnlikePost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	ok, err := s.store.Likes.Delete(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("like", postID)
	}
	if err := s.store.Posts.DecrementLikes(ctx, postID); err != nil {
		s.recount(ctx, postID, "likes.remove", err)
		return nil, err
	}
	return s.store.Posts.FindByID(ctx, postID)
}

// LikedPosts lists the posts userID has liked, in the order they were liked.
func (s *Service) LikedPosts(ctx context.Context, userID int64, p repository.Page) (*Page[models.Post], error) {
	p = withDefaults(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ids, err := s.store.Likes.PostIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		post, err := s.store.Posts.FindByID(ctx, id)
		if apperr.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return newPage(storage.Paginate(posts, p.Page, p.Limit), len(posts), p), nil
}

// recount repairs a post's counters after a failed decrement.
func (s *Service) recount(ctx context.Context, postID int64, op string, cause error) {
	log := logger.From(ctx).With(logger.Op(op), logger.PostID(postID))
	if _, err := s.store.Posts.RecountCounters(ctx, postID); err != nil {
		log.Error("counter drift not repaired", logger.Err(cause), zap.NamedError("recount", err))
		return
	}
	log.Warn("counters recomputed after failed decrement", logger.Err(cause))
}
