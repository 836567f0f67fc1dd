package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(secret string) (*JWTService, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewJWTService(secret, WithClock(clock.Now)), clock
}

func TestJWTService_IssueAndVerify(t *testing.T) {
	tests := []struct {
		name    string
		userID  uint
		isAdmin bool
	}{
		{"regular user", 5, false},
		{"admin", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, clock := newTestService("test-secret")

			token, expiresAt, err := svc.Issue(tt.userID, tt.isAdmin)
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, clock.now.Add(TokenExpiry), expiresAt)

			identity, err := svc.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, Identity{UserID: tt.userID, IsAdmin: tt.isAdmin}, identity)
		})
	}
}

func TestJWTService_Expiry(t *testing.T) {
	svc, clock := newTestService("test-secret")
	token, _, err := svc.Issue(7, false)
	require.NoError(t, err)

	clock.now = clock.now.Add(TokenExpiry - time.Second)
	_, err = svc.Verify(token)
	assert.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Second)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTService_VerifyFailures(t *testing.T) {
	svc, clock := newTestService("right-secret")
	other := NewJWTService("wrong-secret", WithClock(clock.Now))

	foreign, _, err := other.Issue(3, true)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		UserID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	}).SignedString([]byte("right-secret"))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	}).SignedString([]byte("right-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 3}).SignedString([]byte("right-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"missing", "", ErrTokenMissing},
		{"malformed", "not.a.jwt", ErrTokenInvalid},
		{"garbage", "abc", ErrTokenInvalid},
		{"wrong secret", foreign, ErrTokenInvalid},
		{"other algorithm", hs512, ErrTokenInvalid},
		{"no user id", noUser, ErrTokenInvalid},
		{"no expiry", noExpiry, ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, identity)
		})
	}
}

func TestJWTService_TamperedSignatureBeatsExpiry(t *testing.T) {
	svc, clock := newTestService("right-secret")
	other := NewJWTService("wrong-secret", WithClock(clock.Now))
	token, _, err := other.Issue(3, false)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * TokenExpiry)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
