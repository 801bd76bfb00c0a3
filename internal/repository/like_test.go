package repository

import (
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func likedPosts(t *testing.T, r repos, userID uint) models.PostIDList {
	t.Helper()
	user, err := r.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.LikedPosts
}

func likeCount(t *testing.T, r repos, postID uint) int {
	t.Helper()
	post, err := r.posts.GetByID(context.Background(), postID)
	require.NoError(t, err)
	return post.LikeCount
}

func TestLikeRepository_AddAndRemove(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, r.db, "alice")
	bob := testutil.SeedUser(t, r.db, "bob")
	post := testutil.SeedPost(t, r.db, alice.ID, "hello")

	state, err := r.likes.AddLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, state.Liked)
	assert.Equal(t, 1, state.LikeCount)
	assert.Equal(t, models.PostIDList{post.ID}, state.LikedPosts)
	assert.Equal(t, 1, likeCount(t, r, post.ID))
	assert.Equal(t, models.PostIDList{post.ID}, likedPosts(t, r, bob.ID))

	state, err = r.likes.RemoveLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, state.Liked)
	assert.Equal(t, 0, state.LikeCount)
	assert.Empty(t, state.LikedPosts)
	assert.Equal(t, 0, likeCount(t, r, post.ID))
	assert.Equal(t, models.PostIDList{}, likedPosts(t, r, bob.ID))
}

func TestLikeRepository_DoubleLikeAndDoubleRemove(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, r.db, "alice")
	other := testutil.SeedPost(t, r.db, alice.ID, "other")
	post := testutil.SeedPost(t, r.db, alice.ID, "hello")
	bob := testutil.SeedUser(t, r.db, "bob", other.ID)

	_, err := r.likes.AddLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	_, err = r.likes.AddLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, likeCount(t, r, post.ID))
	assert.Equal(t, models.PostIDList{other.ID, post.ID, post.ID}, likedPosts(t, r, bob.ID))

	_, err = r.likes.RemoveLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	_, err = r.likes.RemoveLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	// the third remove finds nothing: list and counter stay put
	state, err := r.likes.RemoveLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, state.Liked)
	assert.Equal(t, 0, state.LikeCount)
	assert.Equal(t, models.PostIDList{other.ID}, likedPosts(t, r, bob.ID))
	assert.Equal(t, 0, likeCount(t, r, post.ID))
}

func TestLikeRepository_NotFound(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, r.db, "alice")
	post := testutil.SeedPost(t, r.db, alice.ID, "hello")

	_, err := r.likes.AddLike(ctx, 999, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = r.likes.AddLike(ctx, alice.ID, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	// the failed transaction left nothing behind
	assert.Equal(t, models.PostIDList{}, likedPosts(t, r, alice.ID))

	_, err = r.likes.AdjustLikeCount(ctx, 999, 1)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = r.likes.AppendLikedPost(ctx, 999, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestLikeRepository_SplitOperations(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, r.db, "alice")
	post := testutil.SeedPost(t, r.db, alice.ID, "hello")

	liked, err := r.likes.AppendLikedPost(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostIDList{post.ID}, liked)
	// the counter is a separate call
	assert.Equal(t, 0, likeCount(t, r, post.ID))

	count, err := r.likes.AdjustLikeCount(ctx, post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	liked, removed, err := r.likes.RemoveLikedPost(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, liked)

	_, removed, err = r.likes.RemoveLikedPost(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	count, err = r.likes.AdjustLikeCount(ctx, post.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = r.likes.AdjustLikeCount(ctx, post.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "counter floors at zero")
}

func TestLikeRepository_RemovePostFromAllUsers(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, r.db, "owner")

	var post, lookalike *models.BlogPost
	// create posts until one has an ID that is a substring of another's
	for i := 0; i < 12; i++ {
		p := testutil.SeedPost(t, r.db, owner.ID, "p")
		if p.ID == 1 {
			post = p
		}
		if p.ID == 11 {
			lookalike = p
		}
	}
	require.NotNil(t, post)
	require.NotNil(t, lookalike)

	a := testutil.SeedUser(t, r.db, "a", post.ID, lookalike.ID, post.ID)
	b := testutil.SeedUser(t, r.db, "b", lookalike.ID)
	c := testutil.SeedUser(t, r.db, "c", post.ID)
	d := testutil.SeedUser(t, r.db, "d")

	n, err := r.likes.RemovePostFromAllUsers(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, models.PostIDList{lookalike.ID}, likedPosts(t, r, a.ID))
	assert.Equal(t, models.PostIDList{lookalike.ID}, likedPosts(t, r, b.ID))
	assert.Equal(t, models.PostIDList{}, likedPosts(t, r, c.ID))
	assert.Equal(t, models.PostIDList{}, likedPosts(t, r, d.ID))

	n, err = r.likes.RemovePostFromAllUsers(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLikeRepository_AddLikeLocksRowsOnPostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db, cache.New(nil))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "liked_posts"}).AddRow(2, "bob", "[]"))
	mock.ExpectQuery(`SELECT \* FROM "blog_posts" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "like_count"}).AddRow(5, 1, 4))
	mock.ExpectExec(`UPDATE "users" SET "liked_posts"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "blog_posts" SET "like_count"=like_count \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	state, err := repo.AddLike(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, state.LikeCount)
	assert.Equal(t, models.PostIDList{5}, state.LikedPosts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_AddLikeRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db, cache.New(nil))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "liked_posts"}).AddRow(2, "[]"))
	mock.ExpectQuery(`SELECT \* FROM "blog_posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "like_count"}))
	mock.ExpectRollback()

	_, err := repo.AddLike(context.Background(), 2, 5)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
