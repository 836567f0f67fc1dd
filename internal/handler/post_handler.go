package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"postbox/internal/model"
	"postbox/internal/service"
)

// PostHandler handles post endpoints.
type PostHandler struct {
	postService service.PostService
}

// NewPostHandler creates a new post handler.
func NewPostHandler(postService service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// CreatePostRequest represents a new post. Omitting visible_to or sending
// null makes the post public.
type CreatePostRequest struct {
	Content   string `json:"content" validate:"required"`
	VisibleTo []uint `json:"visible_to" validate:"omitempty,dive,gt=0"`
}

// OptionalIDs distinguishes an absent visible_to from an explicit null.
type OptionalIDs struct {
	Set bool
	IDs []uint
}

// UnmarshalJSON records that the field was present. null leaves IDs nil.
func (o *OptionalIDs) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.IDs = nil
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	if ids == nil {
		ids = []uint{}
	}
	o.IDs = ids
	return nil
}

// UpdatePostRequest is a partial update. visible_to is three-state: absent
// keeps the current set, null makes the post public, an array replaces the set.
type UpdatePostRequest struct {
	Content   *string     `json:"content"`
	VisibleTo OptionalIDs `json:"visible_to" swaggertype:"array,integer"`
}

// PostResponse is the wire view of a post. visible_to is null for public posts.
type PostResponse struct {
	ID         uint      `json:"id"`
	Content    string    `json:"content"`
	AuthorID   uint      `json:"author_id"`
	AuthorName string    `json:"author_name"`
	VisibleTo  []uint    `json:"visible_to"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toPostResponse(p *model.Post) PostResponse {
	return PostResponse{
		ID:         p.ID,
		Content:    p.Content,
		AuthorID:   p.AuthorID,
		AuthorName: p.AuthorName,
		VisibleTo:  p.VisibleTo(),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ListPosts godoc
// @Summary List posts visible to the caller
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PostResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /posts [get]
func (h *PostHandler) ListPosts(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	posts, err := h.postService.List(c.Request().Context(), caller)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, lo.Map(posts, func(p model.Post, _ int) PostResponse {
		return toPostResponse(&p)
	}))
}

// GetPost godoc
// @Summary Get a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	post, err := h.postService.Get(c.Request().Context(), caller, id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toPostResponse(post))
}

// CreatePost godoc
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePostRequest true "Post data"
// @Success 201 {object} PostResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /posts [post]
func (h *PostHandler) CreatePost(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req CreatePostRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	post, err := h.postService.Create(c.Request().Context(), caller, service.CreatePostInput{
		Content:   req.Content,
		VisibleTo: req.VisibleTo,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, toPostResponse(post))
}

// UpdatePost godoc
// @Summary Update a post
// @Description Only the author or an admin may update a post.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Fields to change"
// @Success 200 {object} PostResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /posts/{id} [patch]
func (h *PostHandler) UpdatePost(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	post, err := h.postService.Update(c.Request().Context(), caller, id, model.PostPatch{
		Content:   req.Content,
		VisibleTo: model.Visibility{Set: req.VisibleTo.Set, IDs: req.VisibleTo.IDs},
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toPostResponse(post))
}

// DeletePost godoc
// @Summary Delete a post
// @Description Only the author or an admin may delete a post.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /posts/{id} [delete]
func (h *PostHandler) DeletePost(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.postService.Delete(c.Request().Context(), caller, id); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "post deleted"})
}
