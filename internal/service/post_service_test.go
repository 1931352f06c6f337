package service

import (
	"context"
	"strings"
	"testing"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/models"
	"campusfeed/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	created := 0
	repo.createFn = func(_ context.Context, _ *models.Post) error {
		created++
		return nil
	}
	svc := NewPostService(&testutil.PassthroughTx{}, Repositories{Posts: repo}, nil, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{name: "missing title", in: CreatePostInput{UserID: 1, Title: "  ", Content: "x"}},
		{name: "title too long", in: CreatePostInput{UserID: 1, Title: strings.Repeat("t", models.MaxTitleLength+1)}},
		{name: "unknown category", in: CreatePostInput{UserID: 1, Title: "ok", Category: "Memes"}},
		{name: "content too long", in: CreatePostInput{UserID: 1, Title: "ok", Content: strings.Repeat("c", maxContentLen+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.in)
			assertValidationError(t, err)
		})
	}
	assert.Zero(t, created)
}

func TestPostService_CreatePost_Defaults(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	var saved *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 11
		saved = p
		return nil
	}
	repo.getDetailFn = func(_ context.Context, _ uint) (*models.Post, error) { return saved, nil }
	svc := NewPostService(&testutil.PassthroughTx{}, Repositories{Posts: repo}, nil, nil, nil, nil)

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:  3,
		Title:   "  Hackathon team  ",
		Content: "Need a **frontend** dev <script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hackathon team", post.Title)
	assert.Equal(t, models.DefaultCategory, post.Category)
	assert.Contains(t, post.ContentHTML, "<strong>frontend</strong>")
	assert.NotContains(t, post.ContentHTML, "<script>")
}

func TestPostService_UpdatePost_Ownership(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 42, Title: "Original"}, nil
	}
	updated := false
	repo.updateFn = func(_ context.Context, _ *models.Post) error {
		updated = true
		return nil
	}
	svc := NewPostService(&testutil.PassthroughTx{}, Repositories{Posts: repo}, nil, nil, nil, nil)
	title := "Hijacked"

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 7, PostID: 1, Title: &title})
	assertForbiddenError(t, err)
	assert.False(t, updated)
}

func TestPostService_CRUD(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	post, err := env.posts.CreatePost(ctx, CreatePostInput{
		UserID:   alice.ID,
		Title:    "Robotics club meetup",
		Content:  "Room 204, *bring laptops*",
		Category: "Clubs",
	})
	require.NoError(t, err)
	require.NotNil(t, post.User)
	assert.Equal(t, "alice", post.User.Name)
	assert.Contains(t, post.ContentHTML, "<em>bring laptops</em>")

	_, err = env.posts.CreatePost(ctx, CreatePostInput{UserID: bob.ID, Title: "Midterm notes", Category: "Academics"})
	require.NoError(t, err)

	_, err = env.reactions.AddReaction(ctx, ReactionInput{UserID: bob.ID, Target: models.PostTarget(post.ID)})
	require.NoError(t, err)
	env.comment(t, bob.ID, post.ID, nil, "Count me in")

	detail, err := env.posts.GetPost(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.CommentsCount)
	assert.Equal(t, 1, detail.ReactionsCount)
	assert.Equal(t, int64(1), detail.Reactions.Total)
	assert.Equal(t, []models.ReactionKind{models.ReactionLike}, detail.Reactions.UserReactions)

	content := "Moved to room 301"
	updated, err := env.posts.UpdatePost(ctx, UpdatePostInput{UserID: alice.ID, PostID: post.ID, Title: new(string), Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Robotics club meetup", updated.Title)
	assert.Equal(t, content, updated.ContentMD)
	assert.NotNil(t, updated.EditedAt)

	page, err := env.posts.ListPosts(ctx, ListPostsInput{Category: "Clubs"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageLimit, page.Limit)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "alice", page.Posts[0].UserName)

	page, err = env.posts.ListPosts(ctx, ListPostsInput{UserID: bob.ID, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageLimit, page.Limit)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Midterm notes", page.Posts[0].Title)

	categories, err := env.posts.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, len(models.Categories))
	counts := map[string]int64{}
	for _, c := range categories {
		counts[c.Name] = c.Count
	}
	assert.Equal(t, int64(1), counts["Clubs"])
	assert.Equal(t, int64(1), counts["Academics"])
	assert.Zero(t, counts["Food"])

	_, err = env.posts.GetPost(ctx, 9999, 0)
	assertNotFoundError(t, err)
}

func TestPostService_DeletePost_Cascade(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	carol := testutil.CreateUser(t, env.db, "carol")

	post := testutil.CreatePost(t, env.db, alice.ID, "Fest volunteers")
	keep := testutil.CreatePost(t, env.db, bob.ID, "Unrelated")

	c1 := env.comment(t, bob.ID, post.ID, nil, "I can help")
	c2 := env.comment(t, alice.ID, post.ID, &c1.ID, "Great, thanks")
	env.comment(t, carol.ID, post.ID, &c2.ID, "Me too")
	other := env.comment(t, alice.ID, keep.ID, nil, "Nice")

	for _, in := range []ReactionInput{
		{UserID: bob.ID, Target: models.PostTarget(post.ID)},
		{UserID: carol.ID, Target: models.PostTarget(post.ID), Kind: "celebrate"},
		{UserID: carol.ID, Target: models.CommentTarget(c1.ID)},
		{UserID: bob.ID, Target: models.CommentTarget(c2.ID), Kind: "funny"},
		{UserID: alice.ID, Target: models.CommentTarget(other.ID)},
	} {
		_, err := env.reactions.AddReaction(ctx, in)
		require.NoError(t, err)
	}

	media, err := env.media.UploadMedia(ctx, UploadMediaInput{
		UserID:      alice.ID,
		PostID:      post.ID,
		Filename:    "poster.png",
		ContentType: "image/png",
		Content:     testPNG(t, 640, 480),
	})
	require.NoError(t, err)
	require.True(t, env.store.has(media.StorageKey))

	noticesBefore := testutil.Count(t, env.db, &models.Notification{}, "")

	t.Run("non-owner removes nothing", func(t *testing.T) {
		_, err := env.posts.DeletePost(ctx, DeletePostInput{UserID: bob.ID, PostID: post.ID})
		assertForbiddenError(t, err)
		assert.Equal(t, int64(1), testutil.Count(t, env.db, &models.Post{}, "id = ?", post.ID))
		assert.Equal(t, int64(3), testutil.Count(t, env.db, &models.Comment{}, "post_id = ?", post.ID))
		assert.Equal(t, int64(5), testutil.Count(t, env.db, &models.Reaction{}, ""))
		assert.Equal(t, int64(1), testutil.Count(t, env.db, &models.Media{}, ""))
	})

	t.Run("owner removes everything", func(t *testing.T) {
		result, err := env.posts.DeletePost(ctx, DeletePostInput{UserID: alice.ID, PostID: post.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.CommentsDeleted)
		assert.Equal(t, int64(4), result.ReactionsDeleted)
		assert.Equal(t, 1, result.MediaDeleted)

		assert.Zero(t, testutil.Count(t, env.db, &models.Post{}, "id = ?", post.ID))
		assert.Zero(t, testutil.Count(t, env.db, &models.Comment{}, "post_id = ?", post.ID))
		assert.Zero(t, testutil.Count(t, env.db, &models.Media{}, "post_id = ?", post.ID))
		assert.Zero(t, testutil.Count(t, env.db, &models.Notification{}, "post_id = ?", post.ID))
		assert.Equal(t, int64(1), testutil.Count(t, env.db, &models.Reaction{}, ""))
		assert.Zero(t, env.store.len())

		assert.Equal(t, noticesBefore, testutil.Count(t, env.db, &models.Notification{}, ""))
		assert.Equal(t, int64(1), testutil.Count(t, env.db, &models.Comment{}, "id = ?", other.ID))
	})

	t.Run("second delete is not found", func(t *testing.T) {
		_, err := env.posts.DeletePost(ctx, DeletePostInput{UserID: alice.ID, PostID: post.ID})
		assertNotFoundError(t, err)
	})

	assert.Contains(t, env.events.Types(), events.PostDeleted)
}

func TestPostService_GetPost_CacheInvalidation(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newFeedEnvWithCache(t, testutil.OpenDB(t), cache.NewStore(rdb, "test"))
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "Bus schedule")

	detail, err := env.posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, detail.CommentsCount)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	env.comment(t, bob.ID, post.ID, nil, "Is the 8am bus running?")
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	detail, err = env.posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.CommentsCount)

	_, err = env.reactions.AddReaction(ctx, ReactionInput{UserID: bob.ID, Target: models.PostTarget(post.ID)})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	summary, err := env.reactions.Summary(ctx, models.PostTarget(post.ID), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Total)
	assert.True(t, mr.Exists(cache.ReactionCountsKey(models.PostTarget(post.ID))))

	_, err = env.posts.DeletePost(ctx, DeletePostInput{UserID: alice.ID, PostID: post.ID})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.ReactionCountsKey(models.PostTarget(post.ID))))

	_, err = env.posts.GetPost(ctx, post.ID, 0)
	assertNotFoundError(t, err)
}
