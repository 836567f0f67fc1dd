package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenExpiry is the validity window of an identity token.
const TokenExpiry = time.Hour

var (
	// ErrTokenMissing is returned when no token was presented.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenInvalid is returned when the signature or payload is bad.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Identity is the decoded result of a verified token.
type Identity struct {
	UserID  uint `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

// Claims represents JWT claims.
type Claims struct {
	UserID  uint `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock overrides the clock used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// JWTService issues and verifies HS256 identity tokens. The signing key is set
// once at construction.
type JWTService struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		secret: []byte(secret),
		now:    time.Now,
		// Claims are checked against s.now in Verify, not the package clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a signed token for the user, valid for TokenExpiry.
func (s *JWTService) Issue(userID uint, isAdmin bool) (token string, expiresAt time.Time, err error) {
	now := s.now()
	expiresAt = now.Add(TokenExpiry)
	claims := &Claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks the token signature and expiry and returns the identity it
// encodes.
func (s *JWTService) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrTokenMissing
	}

	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrTokenInvalid
	}
	if claims.UserID == 0 || claims.ExpiresAt == nil {
		return Identity{}, ErrTokenInvalid
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		return Identity{}, ErrTokenExpired
	}

	return Identity{UserID: claims.UserID, IsAdmin: claims.IsAdmin}, nil
}
