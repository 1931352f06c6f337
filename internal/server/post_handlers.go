package server

import (
	"campusfeed/internal/middleware"
	"campusfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content"`
	Category string `json:"category" validate:"max=50"`
}

type updatePostRequest struct {
	Title    *string `json:"title" validate:"omitnil,max=200"`
	Content  *string `json:"content"`
	Category *string `json:"category" validate:"omitnil,max=50"`
}

// ListPosts handles GET /api/posts
// @Summary List posts
// @Description Newest or most reacted posts, optionally filtered by category and search text
// @Tags posts
// @Produce json
// @Param category query string false "Category"
// @Param search query string false "Search in title and body"
// @Param sort query string false "newest or popular"
// @Param page query int false "Page, 1-based"
// @Param limit query int false "Page size, at most 100"
// @Success 200 {object} service.PostPage
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), listPostsInput(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(page)
}

// ListCategories handles GET /api/posts/categories
func (s *Server) ListCategories(c *fiber.Ctx) error {
	categories, err := s.postService.ListCategories(c.UserContext())
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   callerID(c),
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Description A post with media, counters and the reaction summary
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.PostDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	viewer, _ := middleware.UserID(c)

	post, err := s.postService.GetPost(c.UserContext(), id, viewer)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   callerID(c),
		PostID:   id,
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Description Removes the post with its comments, reactions and media
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.CascadeResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: callerID(c),
		PostID: id,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Post deleted",
		"deleted": result,
	})
}
