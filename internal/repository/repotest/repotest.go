// Package repotest holds the behavior every repository backend must share.
// Backends call Run from their own tests with a factory that returns an
// empty store.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"board/internal/apperr"
	"board/internal/models"
	"board/internal/repository"
)

// Factory returns a fresh, empty store. It is called once per subtest.
type Factory func(t *testing.T) *repository.Store

func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s *repository.Store)
	}{
		{"UserIDsStartAtOne", testUserIDsStartAtOne},
		{"UserUniqueness", testUserUniqueness},
		{"UserUpdate", testUserUpdate},
		{"UserSoftDelete", testUserSoftDelete},
		{"UserPagination", testUserPagination},
		{"PostCounters", testPostCounters},
		{"CounterFloor", testCounterFloor},
		{"CounterOnMissingPost", testCounterOnMissingPost},
		{"PostUpdate", testPostUpdate},
		{"PostPaginationCompleteness", testPostPaginationCompleteness},
		{"PostSearchAndSort", testPostSearchAndSort},
		{"SearchFoldsUnicode", testSearchFoldsUnicode},
		{"CascadeDelete", testCascadeDelete},
		{"RecountCounters", testRecountCounters},
		{"CommentsNeedPost", testCommentsNeedPost},
		{"CommentOrdering", testCommentOrdering},
		{"LikeUniqueness", testLikeUniqueness},
		{"RefreshTokenReplace", testRefreshTokenReplace},
		{"InvalidPage", testInvalidPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func seedUser(t *testing.T, s *repository.Store, nick string) *models.User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), models.NewUser{
		Email:        nick + "@example.com",
		Nickname:     nick,
		PasswordHash: "hash-" + nick,
	})
	require.NoError(t, err)
	return u
}

func seedPost(t *testing.T, s *repository.Store, userID int64, title string) *models.Post {
	t.Helper()
	p, err := s.Posts.Create(context.Background(), models.NewPost{Title: title, Content: "body of " + title, UserID: userID})
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

func testUserIDsStartAtOne(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u, err := s.Users.Create(ctx, models.NewUser{Email: "a@x.com", Nickname: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.IsDeleted)
	assert.False(t, u.CreatedAt.IsZero())

	v := seedUser(t, s, "bob")
	assert.Equal(t, int64(2), v.ID)

	got, err := s.Users.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Nickname)
	assert.Equal(t, "h", got.PasswordHash)
	assert.Nil(t, got.ProfileImage)

	_, err = s.Users.FindByID(ctx, 99)
	assert.True(t, apperr.IsNotFound(err))
}

func testUserUniqueness(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	seedUser(t, s, "alice")

	_, err := s.Users.Create(ctx, models.NewUser{Email: "ALICE@example.com", Nickname: "other", PasswordHash: "h"})
	var conflict *apperr.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)

	_, err = s.Users.Create(ctx, models.NewUser{Email: "new@example.com", Nickname: "Alice", PasswordHash: "h"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "nickname", conflict.Field)

	all, err := s.Users.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "a conflicting create must not leave a record")

	ok, err := s.Users.ExistsByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Users.ExistsByNickname(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := s.Users.FindByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	_, err = s.Users.FindByNickname(ctx, "ghost")
	assert.True(t, apperr.IsNotFound(err))
}

func testUserUpdate(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	seedUser(t, s, "bob")

	_, err := s.Users.Update(ctx, alice.ID, models.UserPatch{})
	assert.True(t, apperr.IsValidation(err))

	_, err = s.Users.Update(ctx, alice.ID, models.UserPatch{Nickname: ptr("BOB")})
	assert.True(t, apperr.IsConflict(err))

	ok, err := s.Users.Update(ctx, alice.ID, models.UserPatch{Nickname: ptr("alicia"), ProfileImage: ptr("/img/a.png")})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Nickname)
	require.NotNil(t, got.ProfileImage)
	assert.Equal(t, "/img/a.png", *got.ProfileImage)
	assert.Equal(t, alice.Email, got.Email)

	ok, err = s.Users.Update(ctx, alice.ID, models.UserPatch{ProfileImage: ptr("")})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProfileImage, "empty image clears it")

	ok, err = s.Users.Update(ctx, 42, models.UserPatch{Nickname: ptr("x")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testUserSoftDelete(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	ok, err := s.Users.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Users.Delete(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete is a no-op")

	got, err := s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.NotNil(t, got.DeletedAt)
	assert.False(t, got.Live())

	_, err = s.Users.Create(ctx, models.NewUser{Email: alice.Email, Nickname: "fresh", PasswordHash: "h"})
	assert.True(t, apperr.IsConflict(err), "email stays reserved after deletion")

	ok, err = s.Users.Update(ctx, alice.ID, models.UserPatch{Nickname: ptr("zombie")})
	require.NoError(t, err)
	assert.False(t, ok, "deleted users cannot be edited")

	page, total, err := s.Users.FindWithPagination(ctx, repository.UserQuery{Page: repository.Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}

func testUserPagination(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	for _, n := range []string{"anna", "ben", "carl", "dana", "anton"} {
		seedUser(t, s, n)
	}
	page, total, err := s.Users.FindWithPagination(ctx, repository.UserQuery{
		Page:   repository.Page{Page: 1, Limit: 10},
		Search: "AN",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 3)
	assert.Equal(t, []string{"anna", "dana", "anton"}, []string{page[0].Nickname, page[1].Nickname, page[2].Nickname})

	page, total, err = s.Users.FindWithPagination(ctx, repository.UserQuery{Page: repository.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].ID)
}

func testPostCounters(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	p := seedPost(t, s, u.ID, "hello")
	assert.Zero(t, p.Views)
	assert.Zero(t, p.Likes)
	assert.Zero(t, p.CommentsCount)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Posts.IncrementViews(ctx, p.ID))
	}
	require.NoError(t, s.Posts.IncrementLikes(ctx, p.ID))
	require.NoError(t, s.Posts.IncrementCommentsCount(ctx, p.ID))
	require.NoError(t, s.Posts.IncrementCommentsCount(ctx, p.ID))
	require.NoError(t, s.Posts.DecrementCommentsCount(ctx, p.ID))

	got, err := s.Posts.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Views)
	assert.Equal(t, int64(1), got.Likes)
	assert.Equal(t, int64(1), got.CommentsCount)
}

func testCounterFloor(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	p := seedPost(t, s, u.ID, "hello")

	require.NoError(t, s.Posts.DecrementLikes(ctx, p.ID))
	require.NoError(t, s.Posts.DecrementCommentsCount(ctx, p.ID))

	got, err := s.Posts.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Likes)
	assert.Zero(t, got.CommentsCount)
}

func testCounterOnMissingPost(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	assert.True(t, apperr.IsNotFound(s.Posts.IncrementViews(ctx, 7)))
	assert.True(t, apperr.IsNotFound(s.Posts.DecrementLikes(ctx, 7)))
	_, err := s.Posts.RecountCounters(ctx, 7)
	assert.True(t, apperr.IsNotFound(err))
}

func testPostUpdate(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	p := seedPost(t, s, u.ID, "hello")

	_, err := s.Posts.Update(ctx, p.ID, models.PostPatch{})
	assert.True(t, apperr.IsValidation(err))

	ok, err := s.Posts.Update(ctx, p.ID, models.PostPatch{Title: ptr("renamed")})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Posts.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, p.Content, got.Content)
	assert.Equal(t, u.ID, got.UserID)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	ok, err = s.Posts.Update(ctx, 99, models.PostPatch{Title: ptr("x")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPostPaginationCompleteness(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	const n = 23
	for i := 0; i < n; i++ {
		seedPost(t, s, u.ID, fmt.Sprintf("post %02d", i))
	}

	seen := map[int64]int{}
	limit := 5
	_, total, err := s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: repository.Page{Page: 1, Limit: limit}})
	require.NoError(t, err)
	require.Equal(t, n, total)

	pages := repository.TotalPages(total, limit)
	assert.Equal(t, 5, pages)
	for pg := 1; pg <= pages; pg++ {
		items, tot, err := s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: repository.Page{Page: pg, Limit: limit}})
		require.NoError(t, err)
		assert.Equal(t, n, tot)
		for _, p := range items {
			seen[p.ID]++
		}
	}
	assert.Len(t, seen, n, "every post appears on some page")
	for id, c := range seen {
		assert.Equal(t, 1, c, "post %d appears once", id)
	}

	beyond, tot, err := s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: repository.Page{Page: pages + 1, Limit: limit}})
	require.NoError(t, err)
	assert.Empty(t, beyond)
	assert.Equal(t, n, tot)
}

func testPostSearchAndSort(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	v := seedUser(t, s, "bob")
	a := seedPost(t, s, u.ID, "Go generics")
	b := seedPost(t, s, v.ID, "100% coverage")
	c := seedPost(t, s, u.ID, "gardening")

	require.NoError(t, s.Posts.IncrementViews(ctx, c.ID))
	require.NoError(t, s.Posts.IncrementViews(ctx, c.ID))
	require.NoError(t, s.Posts.IncrementViews(ctx, b.ID))
	require.NoError(t, s.Posts.IncrementLikes(ctx, a.ID))

	page := repository.Page{Page: 1, Limit: 10}

	items, total, err := s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, Search: "GO"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, items[0].ID)

	items, total, err = s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, Search: "%"})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "wildcards match literally")
	assert.Equal(t, b.ID, items[0].ID)

	items, total, err = s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, UserID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, p := range items {
		assert.Equal(t, u.ID, p.UserID)
	}

	items, _, err = s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, Sort: repository.SortViews})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, postIDs(items))

	items, _, err = s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, Sort: repository.SortLikes})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, postIDs(items), "ties fall back to id order")

	_, _, err = s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, Sort: "random"})
	assert.True(t, apperr.IsValidation(err))
}

func testSearchFoldsUnicode(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "élodie")
	a := seedPost(t, s, u.ID, "Éclair recipes")
	seedPost(t, s, u.ID, "eclair without accent")
	page := repository.Page{Page: 1, Limit: 10}

	for _, term := range []string{"é", "É", "ÉCLAIR"} {
		items, total, err := s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: page, Search: term})
		require.NoError(t, err)
		assert.Equal(t, 1, total, term)
		assert.Equal(t, []int64{a.ID}, postIDs(items), term)
	}

	users, total, err := s.Users.FindWithPagination(ctx, repository.UserQuery{Page: page, Search: "ÉLO"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, u.ID, users[0].ID)
}

func postIDs(ps []models.Post) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func testCascadeDelete(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	v := seedUser(t, s, "bob")
	doomed := seedPost(t, s, u.ID, "doomed")
	kept := seedPost(t, s, u.ID, "kept")

	for _, pid := range []int64{doomed.ID, kept.ID} {
		_, err := s.Comments.Create(ctx, models.NewComment{PostID: pid, UserID: v.ID, Content: "first"})
		require.NoError(t, err)
		_, err = s.Comments.Create(ctx, models.NewComment{PostID: pid, UserID: u.ID, Content: "second"})
		require.NoError(t, err)
		_, err = s.Likes.Create(ctx, pid, v.ID)
		require.NoError(t, err)
	}

	ok, err := s.Posts.Delete(ctx, doomed.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Posts.FindByID(ctx, doomed.ID)
	assert.True(t, apperr.IsNotFound(err))

	comments, err := s.Comments.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, comments, 2)
	for _, c := range comments {
		assert.Equal(t, kept.ID, c.PostID, "no comment references the deleted post")
	}
	likes, err := s.Likes.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, kept.ID, likes[0].PostID)

	ok, err = s.Posts.Delete(ctx, doomed.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testRecountCounters(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	v := seedUser(t, s, "bob")
	p := seedPost(t, s, u.ID, "drifted")

	_, err := s.Comments.Create(ctx, models.NewComment{PostID: p.ID, UserID: v.ID, Content: "hi"})
	require.NoError(t, err)
	_, err = s.Likes.Create(ctx, p.ID, v.ID)
	require.NoError(t, err)
	_, err = s.Likes.Create(ctx, p.ID, u.ID)
	require.NoError(t, err)

	fixed, err := s.Posts.RecountCounters(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fixed.Likes)
	assert.Equal(t, int64(1), fixed.CommentsCount)

	n, err := s.Likes.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.Comments.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testCommentsNeedPost(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	_, err := s.Comments.Create(ctx, models.NewComment{PostID: 5, UserID: u.ID, Content: "orphan"})
	assert.True(t, apperr.IsNotFound(err))
	_, err = s.Likes.Create(ctx, 5, u.ID)
	assert.True(t, apperr.IsNotFound(err))

	all, err := s.Comments.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testCommentOrdering(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	p := seedPost(t, s, u.ID, "thread")
	other := seedPost(t, s, u.ID, "elsewhere")

	var ids []int64
	for i := 0; i < 3; i++ {
		c, err := s.Comments.Create(ctx, models.NewComment{PostID: p.ID, UserID: u.ID, Content: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
		ids = append(ids, c.ID)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := s.Comments.Create(ctx, models.NewComment{PostID: other.ID, UserID: u.ID, Content: "x"})
	require.NoError(t, err)

	page := repository.Page{Page: 1, Limit: 10}
	items, total, err := s.Comments.FindWithPagination(ctx, repository.CommentQuery{Page: page, PostID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, ids, commentIDs(items))

	items, _, err = s.Comments.FindWithPagination(ctx, repository.CommentQuery{Page: page, PostID: p.ID, Sort: repository.SortLatest})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, commentIDs(items))

	ok, err := s.Comments.Update(ctx, ids[0], models.CommentPatch{Content: ptr("edited")})
	require.NoError(t, err)
	assert.True(t, ok)
	c, err := s.Comments.FindByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Content)

	ok, err = s.Comments.Delete(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Comments.Delete(ctx, ids[1])
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Comments.DeleteByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func commentIDs(cs []models.Comment) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func testLikeUniqueness(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	v := seedUser(t, s, "bob")
	p := seedPost(t, s, u.ID, "likeable")
	q := seedPost(t, s, u.ID, "also likeable")

	l, err := s.Likes.Create(ctx, p.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, l.PostID)

	_, err = s.Likes.Create(ctx, p.ID, v.ID)
	var conflict *apperr.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "like", conflict.Field)

	n, err := s.Likes.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Likes.Create(ctx, q.ID, v.ID)
	require.NoError(t, err)
	ids, err := s.Likes.PostIDsByUser(ctx, v.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{p.ID, q.ID}, ids)

	ok, err := s.Likes.Exists(ctx, p.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Likes.Delete(ctx, p.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Likes.Delete(ctx, p.ID, v.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Likes.Create(ctx, p.ID, v.ID)
	assert.NoError(t, err, "liking again after unlike is allowed")
}

func testRefreshTokenReplace(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "alice")
	v := seedUser(t, s, "bob")
	now := time.Now().UTC().Truncate(time.Second)

	rec := func(id string, userID int64, hash string) models.RefreshToken {
		return models.RefreshToken{ID: id, UserID: userID, TokenHash: hash, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	}
	require.NoError(t, s.RefreshTokens.Replace(ctx, rec("t1", u.ID, "h1")))
	require.NoError(t, s.RefreshTokens.Replace(ctx, rec("t2", v.ID, "h2")))
	require.NoError(t, s.RefreshTokens.Replace(ctx, rec("t3", u.ID, "h3")))

	_, err := s.RefreshTokens.FindByHash(ctx, "h1")
	assert.True(t, apperr.IsNotFound(err), "replace supersedes the user's previous token")

	got, err := s.RefreshTokens.FindByHash(ctx, "h3")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))

	_, err = s.RefreshTokens.FindByHash(ctx, "h2")
	assert.NoError(t, err, "other users keep their tokens")

	ok, err := s.RefreshTokens.DeleteByHash(ctx, "h3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RefreshTokens.DeleteByHash(ctx, "h3")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.RefreshTokens.DeleteByUser(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testInvalidPage(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	_, _, err := s.Posts.FindWithPagination(ctx, repository.PostQuery{Page: repository.Page{Page: 0, Limit: 10}})
	assert.True(t, apperr.IsValidation(err))
	_, _, err = s.Comments.FindWithPagination(ctx, repository.CommentQuery{Page: repository.Page{Page: 1, Limit: 101}})
	assert.True(t, apperr.IsValidation(err))
	_, _, err = s.Users.FindWithPagination(ctx, repository.UserQuery{Page: repository.Page{Page: 1, Limit: 0}})
	assert.True(t, apperr.IsValidation(err))
}
