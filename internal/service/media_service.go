package service

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"campusfeed/internal/cache"
	"campusfeed/internal/featureflags"
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/repository"
	"campusfeed/internal/storage"
)

var extensionsByMIME = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type MediaService struct {
	mediaRepo repository.MediaRepository
	postRepo  repository.PostRepository
	store     storage.Store
	cache     *cache.Store
	flags     *featureflags.Manager
	maxBytes  int64
}

type UploadMediaInput struct {
	UserID      uint
	PostID      uint
	Filename    string
	ContentType string
	Content     []byte
}

type DeleteMediaInput struct {
	UserID  uint
	MediaID uint
}

func NewMediaService(
	mediaRepo repository.MediaRepository,
	postRepo repository.PostRepository,
	store storage.Store,
	cacheStore *cache.Store,
	flags *featureflags.Manager,
	maxUploadBytes int64,
) *MediaService {
	return &MediaService{
		mediaRepo: mediaRepo,
		postRepo:  postRepo,
		store:     store,
		cache:     cacheStore,
		flags:     flags,
		maxBytes:  maxUploadBytes,
	}
}

// declaredMIME strips parameters such as "; charset=" from a content type.
func declaredMIME(contentType string) string {
	mime, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

func (s *MediaService) UploadMedia(ctx context.Context, in UploadMediaInput) (*models.Media, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("File is empty")
	}
	if s.maxBytes > 0 && int64(len(in.Content)) > s.maxBytes {
		return nil, models.NewValidationError("File too large")
	}

	post, err := visiblePost(ctx, s.postRepo, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only attach media to your own posts")
	}

	mime := declaredMIME(in.ContentType)
	mediaType, ok := models.MediaTypeForMIME(mime)
	if !ok {
		return nil, models.NewValidationError("Unsupported file type")
	}
	if sniffed := declaredMIME(http.DetectContentType(in.Content)); sniffed != mime {
		return nil, models.NewValidationError("File content does not match its declared type")
	}

	media := &models.Media{
		PostID:    post.ID,
		UserID:    in.UserID,
		Type:      mediaType,
		Mime:      mime,
		SizeBytes: int64(len(in.Content)),
	}

	var info *storage.ImageInfo
	if mediaType == models.MediaTypeImage {
		if info, err = storage.DecodeImage(in.Content); err != nil {
			return nil, models.NewValidationError("Image could not be decoded")
		}
		media.Width = info.Width
		media.Height = info.Height
	}

	ext := extensionsByMIME[mime]
	if fileExt := strings.ToLower(filepath.Ext(in.Filename)); ext == "" && fileExt != "" {
		ext = fileExt
	}
	media.StorageKey = storage.NewKey(ext)
	if err := s.store.Put(ctx, media.StorageKey, in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}
	media.URL = s.store.URL(media.StorageKey)

	if info != nil && s.flags.For(featureflags.MediaThumbnails, in.UserID) {
		s.attachThumbnail(ctx, media, info)
	}

	if err := s.mediaRepo.Create(ctx, media); err != nil {
		s.discard(ctx, media)
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, cache.PostKey(post.ID))

	return media, nil
}

// attachThumbnail stores a WebP preview next to the original. Failures leave
// the upload without a thumbnail.
func (s *MediaService) attachThumbnail(ctx context.Context, media *models.Media, info *storage.ImageInfo) {
	thumb, err := storage.Thumbnail(info.Image)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail generation failed", "key", media.StorageKey, "error", err)
		return
	}
	key := storage.ThumbnailKey(media.StorageKey)
	if err := s.store.Put(ctx, key, thumb); err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail store failed", "key", key, "error", err)
		return
	}
	media.ThumbnailKey = key
	media.ThumbnailURL = s.store.URL(key)
}

func (s *MediaService) discard(ctx context.Context, media *models.Media) {
	for _, key := range media.StorageKeys() {
		if err := s.store.Delete(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete media blob", "key", key, "error", err)
		}
	}
}

func (s *MediaService) DeleteMedia(ctx context.Context, in DeleteMediaInput) error {
	media, err := s.mediaRepo.GetByID(ctx, in.MediaID)
	if err != nil {
		return err
	}
	if media.UserID != in.UserID {
		return models.NewForbiddenError("You can only delete your own media")
	}
	if err := s.mediaRepo.Delete(ctx, media.ID); err != nil {
		return err
	}
	s.discard(ctx, media)
	_ = s.cache.Invalidate(ctx, cache.PostKey(media.PostID))
	return nil
}
