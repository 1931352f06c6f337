package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"campusfeed/internal/models"
	"campusfeed/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	u := testutil.CreateUser(t, db, "asha")

	boom := errors.New("boom")
	err := NewTransactor(db).WithinTx(context.Background(), func(tx *gorm.DB) error {
		if err := NewPostRepository(db).WithTx(tx).Create(context.Background(), &models.Post{
			UserID: u.ID, Title: "t", Category: models.DefaultCategory,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, testutil.Count(t, db, &models.Post{}, ""))
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "A", Email: " A@Campus.edu ", PasswordHash: "h"}))
	err := repo.Create(ctx, &models.User{Name: "B", Email: "a@campus.edu", PasswordHash: "h"})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	u, err := repo.GetByEmail(ctx, "A@CAMPUS.EDU")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)

	name, err := repo.NameOf(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", name)

	_, err = repo.NameOf(ctx, 999)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	_, err = repo.GetByID(ctx, 999)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUserRepository_MarkVerified(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Name: "Lena", Email: "lena@campus.edu", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, u))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified, "new accounts start unverified")

	require.NoError(t, repo.MarkVerified(ctx, u.ID))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	assert.Equal(t, models.CodeNotFound, models.ErrorCode(repo.MarkVerified(ctx, 999)))
}

func TestCommentRepository_PathAndSubtree(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	p := testutil.CreatePost(t, db, u.ID, "hello")
	repo := NewCommentRepository(db)

	root := &models.Comment{PostID: p.ID, UserID: u.ID, Content: "root"}
	require.NoError(t, repo.Create(ctx, root))
	require.NoError(t, repo.SetPath(ctx, root.ID, models.RootPath(root.ID)))
	root, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommentPath{root.ID}, root.Path)
	assert.Equal(t, "asha", root.User.Name)
	assert.Empty(t, root.User.Email, "author email must not be loaded")

	child := testutil.CreateComment(t, db, p.ID, u.ID, root, "child")
	grandchild := testutil.CreateComment(t, db, p.ID, u.ID, child, "grandchild")
	other := testutil.CreateComment(t, db, p.ID, u.ID, nil, "other root")

	subtree, err := repo.ListSubtree(ctx, child)
	require.NoError(t, err)
	require.Len(t, subtree, 2)
	assert.Equal(t, child.ID, subtree[0].ID)
	assert.Equal(t, grandchild.ID, subtree[1].ID)
	assert.Equal(t, 2, subtree[1].Depth)

	all, err := repo.ListByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, other.ID, all[3].ID)

	ids, err := repo.IDsByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{root.ID, child.ID, grandchild.ID, other.ID}, ids)

	assert.Equal(t, models.CodeNotFound, models.ErrorCode(repo.SetPath(ctx, 999, models.RootPath(999))))
}

func TestCommentRepository_EditAndSoftDelete(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	p := testutil.CreatePost(t, db, u.ID, "hello")
	c := testutil.CreateComment(t, db, p.ID, u.ID, nil, "first")
	repo := NewCommentRepository(db)

	require.NoError(t, repo.UpdateContent(ctx, c.ID, "edited", time.Now()))
	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.NotNil(t, got.EditedAt)

	require.NoError(t, repo.SoftDelete(ctx, c.ID))
	err = repo.UpdateContent(ctx, c.ID, "again", time.Now())
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err), "deleted comments cannot be edited")
}

func TestReactionRepository_IdempotentInsert(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	p := testutil.CreatePost(t, db, u.ID, "hello")
	repo := NewReactionRepository(db)
	target := models.PostTarget(p.ID)

	applied, err := repo.Insert(ctx, models.NewReaction(target, u.ID, models.ReactionLike))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.Insert(ctx, models.NewReaction(target, u.ID, models.ReactionLike))
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.Insert(ctx, models.NewReaction(target, u.ID, models.ReactionFunny))
	require.NoError(t, err)
	assert.True(t, applied)

	counts, err := repo.CountsByTarget(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, map[models.ReactionKind]int64{models.ReactionLike: 1, models.ReactionFunny: 1}, counts)

	kinds, err := repo.KindsByUser(ctx, target, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ReactionKind{models.ReactionFunny, models.ReactionLike}, kinds)

	n, err := repo.Delete(ctx, target, u.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.Delete(ctx, target, u.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReactionRepository_DeleteByPostComments(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	p1 := testutil.CreatePost(t, db, u.ID, "one")
	p2 := testutil.CreatePost(t, db, u.ID, "two")
	c1 := testutil.CreateComment(t, db, p1.ID, u.ID, nil, "on one")
	c2 := testutil.CreateComment(t, db, p2.ID, u.ID, nil, "on two")
	repo := NewReactionRepository(db)

	for _, target := range []models.ReactionTarget{models.CommentTarget(c1.ID), models.CommentTarget(c2.ID), models.PostTarget(p1.ID)} {
		_, err := repo.Insert(ctx, models.NewReaction(target, u.ID, models.ReactionLike))
		require.NoError(t, err)
	}

	n, err := repo.DeleteByPostComments(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.Reaction{}, ""))

	n, err = repo.DeleteByTarget(ctx, models.PostTarget(p1.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReactionRepository_InsertUsesOnConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "reactions"`) + `.*` + regexp.QuoteMeta(`ON CONFLICT DO NOTHING RETURNING "id"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	applied, err := repo.Insert(context.Background(), models.NewReaction(models.PostTarget(1), 2, models.ReactionLike))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ListFiltersAndSorts(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	v := testutil.CreateUser(t, db, "ben")

	quiet := testutil.CreatePost(t, db, u.ID, "Quiet library hours")
	popular := testutil.CreatePost(t, db, u.ID, "Hackathon this weekend")
	events := testutil.CreatePost(t, db, u.ID, "100% attendance_rule")
	require.NoError(t, db.Model(events).Update("category", "Events").Error)
	hidden := testutil.CreatePost(t, db, u.ID, "Hidden hackathon")
	require.NoError(t, db.Model(hidden).Update("is_deleted", true).Error)

	reactions := NewReactionRepository(db)
	for _, uid := range []uint{u.ID, v.ID} {
		_, err := reactions.Insert(ctx, models.NewReaction(models.PostTarget(popular.ID), uid, models.ReactionLike))
		require.NoError(t, err)
	}
	testutil.CreateComment(t, db, popular.ID, v.ID, nil, "count me")

	repo := NewPostRepository(db)

	posts, total, err := repo.List(ctx, PostFilter{Sort: SortPopular, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, posts, 3)
	assert.Equal(t, popular.ID, posts[0].ID)
	assert.Equal(t, 2, posts[0].ReactionsCount)
	assert.Equal(t, 1, posts[0].CommentsCount)
	assert.Equal(t, "asha", posts[0].User.Name)

	posts, _, err = repo.List(ctx, PostFilter{Sort: SortNewest, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, events.ID, posts[0].ID)
	assert.Equal(t, quiet.ID, posts[2].ID)

	posts, total, err = repo.List(ctx, PostFilter{Search: "HACKATHON", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, popular.ID, posts[0].ID)

	_, total, err = repo.List(ctx, PostFilter{Search: "%", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "wildcards in the search text match literally")

	posts, total, err = repo.List(ctx, PostFilter{Category: "Events", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, events.ID, posts[0].ID)

	posts, total, err = repo.List(ctx, PostFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, posts, 1)
}

func TestPostRepository_DetailAndUpdate(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	p := testutil.CreatePost(t, db, u.ID, "hello")
	require.NoError(t, NewMediaRepository(db).Create(ctx, &models.Media{
		PostID: p.ID, UserID: u.ID, Type: models.MediaTypeImage, URL: "/uploads/a.png",
		StorageKey: "a.png", Mime: "image/png", SizeBytes: 10,
	}))

	repo := NewPostRepository(db)
	now := time.Now()
	p.Title = "renamed"
	p.EditedAt = &now
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetDetail(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.NotNil(t, got.EditedAt)
	require.Len(t, got.Media, 1)
	assert.Equal(t, "/uploads/a.png", got.CoverURL())

	_, err = repo.GetDetail(ctx, 999)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(repo.Delete(ctx, 999)))
}

func TestNotificationRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "asha")
	b := testutil.CreateUser(t, db, "ben")
	p := testutil.CreatePost(t, db, a.ID, "hello")
	c := testutil.CreateComment(t, db, p.ID, b.ID, nil, "hi")
	repo := NewNotificationRepository(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID: a.ID, ActorID: b.ID, Kind: models.NotificationCommentReply,
			Content: "ben commented on your post", PostID: &p.ID, CommentID: &c.ID,
		}))
	}

	list, err := repo.ListByUser(ctx, a.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)

	require.NoError(t, repo.MarkRead(ctx, list[0].ID))
	unread, err := repo.CountUnread(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	n, err := repo.MarkAllRead(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	detached, err := repo.DetachPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detached)
	got, err := repo.GetByID(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.PostID)
	assert.Nil(t, got.CommentID)
	assert.Equal(t, "ben commented on your post", got.Content)
}

func TestMediaRepository_DeleteByPost(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "asha")
	p := testutil.CreatePost(t, db, u.ID, "hello")
	repo := NewMediaRepository(db)

	for _, key := range []string{"a.png", "b.pdf"} {
		require.NoError(t, repo.Create(ctx, &models.Media{
			PostID: p.ID, UserID: u.ID, Type: models.MediaTypeImage, URL: "/uploads/" + key,
			StorageKey: key, Mime: "image/png", SizeBytes: 1,
		}))
	}

	removed, err := repo.DeleteByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.Zero(t, testutil.Count(t, db, &models.Media{}, ""))

	removed, err = repo.DeleteByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
