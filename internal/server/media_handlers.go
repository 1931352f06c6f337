package server

import (
	"io"
	"strconv"

	"campusfeed/internal/models"
	"campusfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media/upload
// @Summary Upload media
// @Description Attach an image (png, jpeg, webp) or a PDF to one of the caller's posts
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File"
// @Param post_id formData int true "Post ID"
// @Success 201 {object} models.Media
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /media/upload [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	postID, err := strconv.ParseUint(c.FormValue("post_id"), 10, 64)
	if err != nil || postID == 0 {
		return respondAppError(c, models.NewValidationError("post_id is required"))
	}

	header, err := c.FormFile("file")
	if err != nil {
		return respondAppError(c, models.NewValidationError("file is required"))
	}
	if header.Size > s.config.MediaMaxUploadBytes() {
		return respondAppError(c, models.NewValidationError("File too large"))
	}

	f, err := header.Open()
	if err != nil {
		return respondAppError(c, models.NewInternalError(err))
	}
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(f)
	if err != nil {
		return respondAppError(c, models.NewInternalError(err))
	}

	media, err := s.mediaService.UploadMedia(c.UserContext(), service.UploadMediaInput{
		UserID:      callerID(c),
		PostID:      uint(postID),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(media)
}

// DeleteMedia handles DELETE /api/media/:id
func (s *Server) DeleteMedia(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.mediaService.DeleteMedia(c.UserContext(), service.DeleteMediaInput{
		UserID:  callerID(c),
		MediaID: id,
	}); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Media deleted"})
}
