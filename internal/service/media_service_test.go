package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"campusfeed/internal/models"
	"campusfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, G: 30, B: 90, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediaService_UploadMedia(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "Campus map")
	img := testPNG(t, 800, 400)

	media, err := env.media.UploadMedia(ctx, UploadMediaInput{
		UserID: alice.ID, PostID: post.ID, Filename: "map.png", ContentType: "image/png", Content: img,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeImage, media.Type)
	assert.Equal(t, 800, media.Width)
	assert.Equal(t, 400, media.Height)
	assert.Equal(t, int64(len(img)), media.SizeBytes)
	assert.Equal(t, "/uploads/"+media.StorageKey, media.URL)
	assert.NotEmpty(t, media.ThumbnailKey)
	assert.True(t, env.store.has(media.StorageKey))
	assert.True(t, env.store.has(media.ThumbnailKey))

	detail, err := env.posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, detail.Media, 1)
	assert.Equal(t, media.URL, detail.CoverURL())

	tests := []struct {
		name  string
		in    UploadMediaInput
		check func(*testing.T, error)
	}{
		{
			name:  "empty file",
			in:    UploadMediaInput{UserID: alice.ID, PostID: post.ID, ContentType: "image/png"},
			check: assertValidationError,
		},
		{
			name:  "too large",
			in:    UploadMediaInput{UserID: alice.ID, PostID: post.ID, ContentType: "image/png", Content: make([]byte, 2<<20)},
			check: assertValidationError,
		},
		{
			name:  "not the owner",
			in:    UploadMediaInput{UserID: bob.ID, PostID: post.ID, ContentType: "image/png", Content: img},
			check: assertForbiddenError,
		},
		{
			name:  "unknown post",
			in:    UploadMediaInput{UserID: alice.ID, PostID: 9999, ContentType: "image/png", Content: img},
			check: assertNotFoundError,
		},
		{
			name:  "disallowed type",
			in:    UploadMediaInput{UserID: alice.ID, PostID: post.ID, ContentType: "text/html", Content: []byte("<html></html>")},
			check: assertValidationError,
		},
		{
			name:  "content does not match declared type",
			in:    UploadMediaInput{UserID: alice.ID, PostID: post.ID, ContentType: "application/pdf", Content: img},
			check: assertValidationError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.media.UploadMedia(ctx, tt.in)
			tt.check(t, err)
		})
	}
	assert.Equal(t, int64(1), testutil.Count(t, env.db, &models.Media{}, ""))
}

func TestMediaService_UploadDocument(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	post := testutil.CreatePost(t, env.db, alice.ID, "Syllabus")

	media, err := env.media.UploadMedia(context.Background(), UploadMediaInput{
		UserID:      alice.ID,
		PostID:      post.ID,
		Filename:    "syllabus.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeDocument, media.Type)
	assert.Empty(t, media.ThumbnailKey)
	assert.Zero(t, media.Width)
	assert.Equal(t, 1, env.store.len())
}

func TestMediaService_DeleteMedia(t *testing.T) {
	t.Parallel()

	env := newFeedEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "Gallery")

	media, err := env.media.UploadMedia(ctx, UploadMediaInput{
		UserID: alice.ID, PostID: post.ID, ContentType: "image/png", Content: testPNG(t, 32, 32),
	})
	require.NoError(t, err)

	assertForbiddenError(t, env.media.DeleteMedia(ctx, DeleteMediaInput{UserID: bob.ID, MediaID: media.ID}))
	require.NoError(t, env.media.DeleteMedia(ctx, DeleteMediaInput{UserID: alice.ID, MediaID: media.ID}))
	assert.Zero(t, env.store.len())
	assertNotFoundError(t, env.media.DeleteMedia(ctx, DeleteMediaInput{UserID: alice.ID, MediaID: media.ID}))
}
