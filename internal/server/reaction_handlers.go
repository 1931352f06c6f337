package server

import (
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// reactionRequest names its target with exactly one of post_id and comment_id.
type reactionRequest struct {
	PostID    *uint  `json:"post_id"`
	CommentID *uint  `json:"comment_id"`
	Type      string `json:"type" validate:"max=32"`
}

func (s *Server) parseReaction(c *fiber.Ctx) (service.ReactionInput, error) {
	var req reactionRequest
	if err := parseBody(c, &req); err != nil {
		return service.ReactionInput{}, err
	}
	target, err := models.TargetFromRefs(req.PostID, req.CommentID)
	if err != nil {
		_ = respondAppError(c, err)
		return service.ReactionInput{}, errResponseWritten
	}
	return service.ReactionInput{
		UserID: callerID(c),
		Target: target,
		Kind:   req.Type,
	}, nil
}

// AddReaction handles POST /api/reactions
// @Summary Add reaction
// @Description Idempotent: repeating a reaction leaves a single row
// @Tags reactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reactionRequest true "Reaction"
// @Success 200 {object} service.ReactionResult
// @Success 201 {object} service.ReactionResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /reactions [post]
func (s *Server) AddReaction(c *fiber.Ctx) error {
	in, err := s.parseReaction(c)
	if err != nil {
		return nil
	}
	result, err := s.reactionService.AddReaction(c.UserContext(), in)
	if err != nil {
		return respondAppError(c, err)
	}
	status := fiber.StatusOK
	if result.Applied {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(result)
}

// RemoveReaction handles DELETE /api/reactions
func (s *Server) RemoveReaction(c *fiber.Ctx) error {
	in, err := s.parseReaction(c)
	if err != nil {
		return nil
	}
	if err := s.reactionService.RemoveReaction(c.UserContext(), in); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reaction removed"})
}

// GetPostReactions handles GET /api/reactions/post/:id
func (s *Server) GetPostReactions(c *fiber.Ctx) error {
	return s.reactionSummary(c, models.TargetPost)
}

// GetCommentReactions handles GET /api/reactions/comment/:id
func (s *Server) GetCommentReactions(c *fiber.Ctx) error {
	return s.reactionSummary(c, models.TargetComment)
}

func (s *Server) reactionSummary(c *fiber.Ctx, targetType models.TargetType) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	viewer, _ := middleware.UserID(c)

	summary, err := s.reactionService.Summary(c.UserContext(),
		models.ReactionTarget{Type: targetType, ID: id}, viewer)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(summary)
}
