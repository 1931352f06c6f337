package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/models"
	"campusfeed/internal/repository"
	"campusfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNotificationService_MarkRead(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "Placement drive")
	env.comment(t, bob.ID, post.ID, nil, "Which companies?")

	inbox, err := env.notifications.List(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	id := inbox[0].ID
	assert.False(t, inbox[0].IsRead)

	_, err = env.notifications.MarkRead(ctx, id, bob.ID)
	assertForbiddenError(t, err)

	_, err = env.notifications.MarkRead(ctx, 9999, alice.ID)
	assertNotFoundError(t, err)

	n, err := env.notifications.MarkRead(ctx, id, alice.ID)
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	n, err = env.notifications.MarkRead(ctx, id, alice.ID)
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	unread, err := env.notifications.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestNotificationService_MarkAllReadAndLimit(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "Open mic")

	const total = models.MaxNotificationPage + 5
	for i := 0; i < total; i++ {
		env.comment(t, bob.ID, post.ID, nil, fmt.Sprintf("comment %d", i))
	}

	unread, err := env.notifications.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(total), unread)

	inbox, err := env.notifications.List(ctx, alice.ID, 500)
	require.NoError(t, err)
	assert.Len(t, inbox, models.MaxNotificationPage)
	assert.Greater(t, inbox[0].ID, inbox[len(inbox)-1].ID)

	small, err := env.notifications.List(ctx, alice.ID, 3)
	require.NoError(t, err)
	assert.Len(t, small, 3)

	changed, err := env.notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(total), changed)

	changed, err = env.notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)

	empty, err := env.notifications.List(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFanout_DeliverRespectsFlag(t *testing.T) {
	t.Parallel()

	rec := &realtimeRecorder{}
	n := &models.Notification{ID: 1, UserID: 2}

	on := NewFanout(nil, nil, nil, rec, nil)
	on.Deliver(context.Background(), n, nil)
	assert.Equal(t, []uint{2}, rec.recipients())

	off := NewFanout(nil, nil, nil, rec, featureflagsOff())
	off.Deliver(context.Background(), n)
	assert.Equal(t, []uint{2}, rec.recipients())
}

// failingNotificationRepo is a real repository whose inserts always fail.
type failingNotificationRepo struct {
	repository.NotificationRepository
	err error
}

func (r failingNotificationRepo) WithTx(tx *gorm.DB) repository.NotificationRepository {
	return failingNotificationRepo{NotificationRepository: r.NotificationRepository.WithTx(tx), err: r.err}
}

func (r failingNotificationRepo) Create(context.Context, *models.Notification) error {
	return r.err
}

func TestFanout_NotificationFailureRollsBackWrite(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	boom := errors.New("notifications table unavailable")

	tx := repository.NewTransactor(env.db)
	fanout := NewFanout(
		failingNotificationRepo{NotificationRepository: env.repos.Notifications, err: boom},
		env.repos.Users, cache.NewNameCache(8, time.Minute), env.realtime, nil)
	comments := NewCommentService(tx, env.repos.Comments, env.repos.Posts, fanout, nil, env.events)
	reactions := NewReactionService(tx, env.repos.Reactions, env.repos.Posts, env.repos.Comments, fanout, nil, nil, env.events)

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "Library hours")

	// Self-actions write no notification, so they commit.
	own, err := comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: post.ID, Content: "Open till 10"})
	require.NoError(t, err)

	countRows := func(model any) int64 {
		var n int64
		require.NoError(t, env.db.Model(model).Count(&n).Error)
		return n
	}

	_, err = comments.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: post.ID, Content: "Thanks"})
	assert.ErrorIs(t, err, boom)
	_, err = comments.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: post.ID, ParentID: &own.ID, Content: "Weekends too?"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), countRows(&models.Comment{}))

	_, err = reactions.AddReaction(ctx, ReactionInput{UserID: bob.ID, Target: models.PostTarget(post.ID), Kind: "like"})
	assert.ErrorIs(t, err, boom)
	_, err = reactions.AddReaction(ctx, ReactionInput{UserID: bob.ID, Target: models.CommentTarget(own.ID), Kind: "helpful"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countRows(&models.Reaction{}))

	assert.Zero(t, countRows(&models.Notification{}))
	assert.Empty(t, env.realtime.recipients())
	assert.Equal(t, []string{events.CommentCreated}, env.events.Types())
}
