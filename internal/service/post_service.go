package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"postbox/internal/auth"
	"postbox/internal/authz"
	apperrors "postbox/internal/errors"
	"postbox/internal/model"
	"postbox/internal/repository"
)

// CreatePostInput carries the client-supplied fields of a new post. A nil
// VisibleTo makes the post public.
type CreatePostInput struct {
	Content   string
	VisibleTo []uint
}

// PostService gates every post store operation behind the caller's identity.
type PostService interface {
	List(ctx context.Context, caller auth.Identity) ([]model.Post, error)
	Get(ctx context.Context, caller auth.Identity, id uint) (*model.Post, error)
	Create(ctx context.Context, caller auth.Identity, in CreatePostInput) (*model.Post, error)
	Update(ctx context.Context, caller auth.Identity, id uint, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, caller auth.Identity, id uint) error
}

type postService struct {
	posts  repository.PostRepository
	users  UserService
	logger *slog.Logger
}

// NewPostService wires the post store with the user profile lookup used for
// author names.
func NewPostService(posts repository.PostRepository, users UserService, logger *slog.Logger) PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &postService{posts: posts, users: users, logger: logger}
}

func (s *postService) List(ctx context.Context, caller auth.Identity) ([]model.Post, error) {
	posts, err := s.posts.List(ctx, authz.FilterFor(caller))
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list posts: %w", err))
	}
	return posts, nil
}

// Get returns the post if caller may read it. Missing and unreadable posts are
// both reported as ErrNotFound.
func (s *postService) Get(ctx context.Context, caller auth.Identity, id uint) (*model.Post, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanRead(caller, post) {
		return nil, apperrors.ErrNotFound
	}
	return post, nil
}

func (s *postService) Create(ctx context.Context, caller auth.Identity, in CreatePostInput) (*model.Post, error) {
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}
	if err := validateViewers(in.VisibleTo); err != nil {
		return nil, err
	}

	author, err := s.users.GetUser(ctx, caller.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// The token outlived its user.
		return nil, apperrors.ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		Content:    in.Content,
		AuthorID:   author.ID,
		AuthorName: author.Username,
	}
	post.SetVisibleTo(in.VisibleTo)

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, apperrors.Storage(fmt.Errorf("create post: %w", err))
	}
	s.logger.InfoContext(ctx, "post created", "post_id", post.ID, "author_id", post.AuthorID, "restricted", post.Restricted)
	return post, nil
}

// Update applies patch if caller owns the post or is an admin.
func (s *postService) Update(ctx context.Context, caller auth.Identity, id uint, patch model.PostPatch) (*model.Post, error) {
	if patch.Empty() {
		return nil, apperrors.Invalid("nothing to update")
	}
	if patch.Content != nil {
		if err := validateContent(*patch.Content); err != nil {
			return nil, err
		}
	}
	if patch.VisibleTo.Set {
		if err := validateViewers(patch.VisibleTo.IDs); err != nil {
			return nil, err
		}
	}

	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutate(caller, post) {
		return nil, apperrors.ErrForbidden
	}

	updated, err := s.posts.Update(ctx, id, patch)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("update post %d: %w", id, err))
	}
	return updated, nil
}

// Delete removes the post if caller owns it or is an admin.
func (s *postService) Delete(ctx context.Context, caller auth.Identity, id uint) error {
	post, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanMutate(caller, post) {
		return apperrors.ErrForbidden
	}

	err = s.posts.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return apperrors.Storage(fmt.Errorf("delete post %d: %w", id, err))
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", id, "by", caller.UserID)
	return nil
}

func (s *postService) load(ctx context.Context, id uint) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("find post %d: %w", id, err))
	}
	return post, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.Invalid("content is required")
	}
	return nil
}

func validateViewers(ids []uint) error {
	for _, id := range ids {
		if id == 0 {
			return apperrors.Invalid("visible_to must contain user ids")
		}
	}
	return nil
}
