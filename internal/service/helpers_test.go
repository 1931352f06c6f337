package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/featureflags"
	"campusfeed/internal/models"
	"campusfeed/internal/repository"
	"campusfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeNotFound)
}

// realtimeRecorder captures notifications handed to live delivery.
type realtimeRecorder struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (r *realtimeRecorder) PublishNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *realtimeRecorder) recipients() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.UserID)
	}
	return out
}

const testUserSecret = "test-secret-that-is-long-enough-123"

// feedEnv wires every service over one SQLite database.
type feedEnv struct {
	db            *gorm.DB
	repos         Repositories
	realtime      *realtimeRecorder
	events        *events.MemoryPublisher
	store         *memoryStore
	comments      *CommentService
	reactions     *ReactionService
	posts         *PostService
	notifications *NotificationService
	media         *MediaService
	users         *UserService
}

func newFeedEnv(t *testing.T) *feedEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	return newFeedEnvWithCache(t, db, nil)
}

func newFeedEnvWithCache(t *testing.T, db *gorm.DB, store *cache.Store) *feedEnv {
	t.Helper()
	env := &feedEnv{
		db:       db,
		repos:    NewRepositories(db),
		realtime: &realtimeRecorder{},
		events:   &events.MemoryPublisher{},
		store:    newMemoryStore(),
	}
	tx := repository.NewTransactor(db)
	names := cache.NewNameCache(64, time.Minute)
	fanout := NewFanout(env.repos.Notifications, env.repos.Users, names, env.realtime, nil)

	env.comments = NewCommentService(tx, env.repos.Comments, env.repos.Posts, fanout, store, env.events)
	env.reactions = NewReactionService(tx, env.repos.Reactions, env.repos.Posts, env.repos.Comments, fanout, store, nil, env.events)
	env.posts = NewPostService(tx, env.repos, env.reactions, env.store, store, env.events)
	env.notifications = NewNotificationService(env.repos.Notifications, env.repos.Users, names)
	env.media = NewMediaService(env.repos.Media, env.repos.Posts, env.store, store, nil, 1<<20)
	env.users = NewUserService(env.repos.Users, env.repos.Comments, testUserSecret, time.Hour,
		AccountPolicy{AllowedDomains: []string{"campus.edu", "campus.test"}})
	return env
}

func (e *feedEnv) comment(t *testing.T, userID, postID uint, parentID *uint, content string) *models.Comment {
	t.Helper()
	c, err := e.comments.CreateComment(context.Background(), CreateCommentInput{
		UserID:   userID,
		PostID:   postID,
		ParentID: parentID,
		Content:  content,
	})
	require.NoError(t, err)
	return c
}

// memoryStore is an in-memory storage.Store.
type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryStore) URL(key string) string {
	return "/uploads/" + key
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func uintPtr(v uint) *uint { return &v }

func featureflagsOff() *featureflags.Manager {
	return featureflags.NewManager("realtime_notifications=off,media_thumbnails=off,reaction_count_cache=off,domain_events=off")
}
