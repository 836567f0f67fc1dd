package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"postbox/internal/cache"
	apperrors "postbox/internal/errors"
	"postbox/internal/model"
	"postbox/internal/repository"
)

// DefaultUserCacheTTL is used when no positive TTL is configured.
const DefaultUserCacheTTL = 5 * time.Minute

// UserService exposes read access to user profiles. Profiles returned here
// never carry the password digest.
type UserService interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache cache.Store
	ttl   time.Duration
}

// NewUserService builds a UserService with repository and cache. store may be
// nil to disable caching.
func NewUserService(repo repository.UserRepository, store cache.Store, ttl time.Duration) UserService {
	if ttl <= 0 {
		ttl = DefaultUserCacheTTL
	}
	return &userService{repo: repo, cache: store, ttl: ttl}
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// GetUser returns the profile for id. Users are immutable, so a cached copy
// never goes stale.
func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	if s.cache != nil {
		if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
			var cached model.User
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("find user %d: %w", id, err))
	}
	user.PasswordHash = ""

	if s.cache != nil {
		if payload, err := json.Marshal(user); err == nil {
			_ = s.cache.Set(ctx, s.cacheKey(id), payload, s.ttl)
		}
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list users: %w", err))
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}
