package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

func TestHashIsSaltedAndComparable(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("correct-horse")
	require.NoError(t, err)
	second, err := h.Hash("correct-horse")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NoError(t, h.Compare(first, "correct-horse"))
	assert.ErrorIs(t, h.Compare(first, "wrong-horse"), ErrCredentialMismatch)
}

func TestHashRejectsShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("short")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestHashRejectsPasswordBcryptWouldTruncate(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash(strings.Repeat("a", MaxPasswordLen+1))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCompareMalformedHash(t *testing.T) {
	err := NewBcryptHasher(bcrypt.MinCost).Compare("not-a-hash", "correct-horse")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredentialMismatch))
}
