// Package security hashes the passwords of staff and patient portal
// accounts.
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

const (
	MinPasswordLen = 8
	// MaxPasswordLen is where bcrypt stops reading input.
	MaxPasswordLen = 72
)

var (
	ErrHashingFailed = errors.New("password hashing failed")
	// ErrCredentialMismatch is returned for a wrong password. It never says
	// whether the account exists.
	ErrCredentialMismatch = errors.New("credentials do not match")
)

// PasswordHasher is what accounts need to store and check a password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost for an out of range cost.
// Seeding and tests pass bcrypt.MinCost to keep bulk account creation fast.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	switch {
	case len(password) < MinPasswordLen:
		return "", apperrors.NewValidation("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	case len(password) > MaxPasswordLen:
		return "", apperrors.NewValidation("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return string(hash), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrCredentialMismatch
	}
	return err
}
