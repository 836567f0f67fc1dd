package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"postbox/internal/auth"
	apperrors "postbox/internal/errors"
	"postbox/internal/model"
	"postbox/internal/repository"
)

// MaxUsernameLength bounds the username column.
const MaxUsernameLength = 64

// RegisterInput carries the fields accepted when creating a user.
type RegisterInput struct {
	Username string
	Password string
	IsAdmin  bool
}

// Validate checks the required fields. Username is trimmed in place.
func (in *RegisterInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	switch {
	case in.Username == "":
		return apperrors.Invalid("username is required")
	case len(in.Username) > MaxUsernameLength:
		return apperrors.Invalid(fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	case in.Password == "":
		return apperrors.Invalid("password is required")
	}
	return nil
}

// AuthService handles registration and login.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (uint, error)
	Login(ctx context.Context, username, password string) (token string, expiresAt time.Time, err error)
}

type authService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	jwtService *auth.JWTService
	logger     *slog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, hasher auth.PasswordHasher, jwtService *auth.JWTService, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		users:      users,
		hasher:     hasher,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Register creates a user with a hashed password and returns its id.
func (s *authService) Register(ctx context.Context, in RegisterInput) (uint, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	existing, err := s.users.FindByUsername(ctx, in.Username)
	if err == nil && existing != nil {
		return 0, apperrors.ErrDuplicateUsername
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperrors.Storage(fmt.Errorf("check username: %w", err))
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, err
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: digest,
		IsAdmin:      in.IsAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same name.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, apperrors.ErrDuplicateUsername
		}
		return 0, apperrors.Storage(fmt.Errorf("create user: %w", err))
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "is_admin", user.IsAdmin)
	return user.ID, nil
}

// Login verifies the credentials and issues a bearer token.
func (s *authService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", time.Time{}, apperrors.Invalid("username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, apperrors.Storage(fmt.Errorf("find user: %w", err))
		}
		// Spend the same bcrypt work as a real comparison.
		_, _ = s.hasher.Verify(password, s.dummy())
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored digest unreadable", "user_id", user.ID, "error", err)
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}
	if !ok {
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwtService.Issue(user.ID, user.IsAdmin)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}
	return token, expiresAt, nil
}

func (s *authService) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("postbox:no-such-user")
		if err != nil {
			s.logger.Warn("compute dummy digest", "error", err)
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}
