package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	apperrors "postbox/internal/errors"
)

// DefaultBcryptCost matches the cost used for stored digests unless configured.
const DefaultBcryptCost = 10

// ErrCorruptDigest is returned when a stored digest cannot be parsed.
var ErrCorruptDigest = errors.New("corrupt password digest")

// PasswordHasher one-way transforms secrets and checks them later.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}

// BcryptHasher is a salted, deliberately slow PasswordHasher.
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher returns a hasher using the given bcrypt cost. Out of range
// costs fall back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted digest of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperrors.Invalid("password is required")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.Invalid("password is too long")
	}
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify compares plaintext against digest in constant time. A mismatch is
// reported as false with a nil error.
func (h *BcryptHasher) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, ErrCorruptDigest
	}
}
