package service

import (
	"context"
	"fmt"

	"campusfeed/internal/cache"
	"campusfeed/internal/featureflags"
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/observability"
	"campusfeed/internal/repository"

	"gorm.io/gorm"
)

// RealtimePublisher pushes a stored notification to live subscribers.
type RealtimePublisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

// Fanout derives notifications from comment and reaction events. Its writes
// happen on the caller's transaction; delivery to live streams happens after
// commit through Deliver.
type Fanout struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	names            *cache.NameCache
	realtime         RealtimePublisher
	flags            *featureflags.Manager
}

func NewFanout(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	names *cache.NameCache,
	realtime RealtimePublisher,
	flags *featureflags.Manager,
) *Fanout {
	return &Fanout{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		names:            names,
		realtime:         realtime,
		flags:            flags,
	}
}

// WithTx returns a Fanout whose reads and writes run on tx.
func (f *Fanout) WithTx(tx *gorm.DB) *Fanout {
	clone := *f
	clone.notificationRepo = f.notificationRepo.WithTx(tx)
	clone.userRepo = f.userRepo.WithTx(tx)
	return &clone
}

// CommentAdded notifies the parent comment's author of a reply, or the post
// author of a top-level comment.
func (f *Fanout) CommentAdded(ctx context.Context, actorID uint, post *models.Post, parent, comment *models.Comment) (*models.Notification, error) {
	recipient, template := post.UserID, "%s commented on your post"
	if parent != nil {
		recipient, template = parent.UserID, "%s replied to your comment"
	}
	return f.notify(ctx, &models.Notification{
		UserID:    recipient,
		ActorID:   actorID,
		Kind:      models.NotificationCommentReply,
		PostID:    &post.ID,
		CommentID: &comment.ID,
	}, template)
}

// ReactionAdded notifies the owner of the reacted-to post or comment.
func (f *Fanout) ReactionAdded(ctx context.Context, actorID uint, kind models.ReactionKind, post *models.Post, comment *models.Comment) (*models.Notification, error) {
	n := &models.Notification{ActorID: actorID, PostID: &post.ID}
	var template string
	if comment != nil {
		n.UserID = comment.UserID
		n.Kind = models.NotificationCommentReaction
		n.CommentID = &comment.ID
		template = "%s reacted " + string(kind) + " to your comment"
	} else {
		n.UserID = post.UserID
		n.Kind = models.NotificationPostReaction
		template = "%s reacted " + string(kind) + " to your post"
	}
	return f.notify(ctx, n, template)
}

// notify writes n unless the actor is also the recipient, in which case it
// returns nil without error.
func (f *Fanout) notify(ctx context.Context, n *models.Notification, template string) (*models.Notification, error) {
	if n.UserID == n.ActorID {
		return nil, nil
	}
	name, err := f.actorName(ctx, n.ActorID)
	if err != nil {
		return nil, err
	}
	n.Content = fmt.Sprintf(template, name)
	if err := f.notificationRepo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsCreated.WithLabelValues(string(n.Kind)).Inc()
	return n, nil
}

func (f *Fanout) actorName(ctx context.Context, userID uint) (string, error) {
	if name, ok := f.names.Get(userID); ok {
		return name, nil
	}
	name, err := f.userRepo.NameOf(ctx, userID)
	if err != nil {
		return "", err
	}
	f.names.Set(userID, name)
	return name, nil
}

// Deliver publishes committed notifications to the recipients' live streams.
// Failures are logged only.
func (f *Fanout) Deliver(ctx context.Context, notices ...*models.Notification) {
	if f.realtime == nil || !f.flags.On(featureflags.RealtimeNotifications) {
		return
	}
	for _, n := range notices {
		if n == nil {
			continue
		}
		if err := f.realtime.PublishNotification(context.WithoutCancel(ctx), n); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish realtime notification",
				"notification_id", n.ID, "recipient_id", n.UserID, "error", err)
		}
	}
}

// NotificationService serves a user's notification inbox.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	names            *cache.NameCache
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	names *cache.NameCache,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		names:            names,
	}
}

// List returns the newest notifications of userID, at most MaxNotificationPage.
func (s *NotificationService) List(ctx context.Context, userID uint, limit int) ([]models.NotificationView, error) {
	if limit <= 0 || limit > models.MaxNotificationPage {
		limit = models.MaxNotificationPage
	}
	items, err := s.notificationRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]models.NotificationView, 0, len(items))
	for _, n := range items {
		views = append(views, models.NotificationView{Notification: n, ActorName: s.actorName(ctx, n.ActorID)})
	}
	return views, nil
}

func (s *NotificationService) actorName(ctx context.Context, userID uint) string {
	if name, ok := s.names.Get(userID); ok {
		return name
	}
	name, err := s.userRepo.NameOf(ctx, userID)
	if err != nil {
		return "Unknown"
	}
	s.names.Set(userID, name)
	return name
}

// MarkRead marks one notification read. Only its recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) (*models.Notification, error) {
	n, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, models.NewForbiddenError("You can only update your own notifications")
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.notificationRepo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead marks every unread notification of userID and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}
