package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret-pass"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrPasswordMismatch)
}

func TestHashPassword_ByteLimit(t *testing.T) {
	// 36 two-byte runes: 72 bytes, the most bcrypt takes.
	_, err := HashPassword(strings.Repeat("é", 36))
	require.NoError(t, err)

	// 40 runes but 80 bytes.
	_, err = HashPassword(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}

func TestDummyHash(t *testing.T) {
	h := DummyHash()
	assert.Equal(t, h, DummyHash())

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	assert.ErrorIs(t, CheckPassword(h, "anything"), ErrPasswordMismatch)
}

func TestGenerateSecureRandomString(t *testing.T) {
	a, err := GenerateSecureRandomString(32)
	require.NoError(t, err)
	b, err := GenerateSecureRandomString(32)
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}

func TestGeneratePassword(t *testing.T) {
	for _, n := range []int{1, 2, 16, 24} {
		p, err := GeneratePassword(n)
		require.NoError(t, err)
		assert.Len(t, p, n)
		assert.NotContains(t, p, "=")
	}
}
