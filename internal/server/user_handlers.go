package server

import (
	"campusfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), callerID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary User profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.Profile(c.UserContext(), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(profile)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.userService.Profile(c.UserContext(), id); err != nil {
		return respondAppError(c, err)
	}

	in := listPostsInput(c)
	in.UserID = id
	page, err := s.postService.ListPosts(c.UserContext(), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(page)
}

// GetUserComments handles GET /api/users/:id/comments
// @Summary User comment history
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string][]models.UserComment
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/comments [get]
func (s *Server) GetUserComments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.userService.Comments(c.UserContext(), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

func listPostsInput(c *fiber.Ctx) service.ListPostsInput {
	return service.ListPostsInput{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 0),
	}
}
