package crypto

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var (
	// ErrPasswordMismatch is returned when a password does not match its hash.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrPasswordTooLong is returned for passwords over MaxPasswordBytes bytes.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)

// HashPassword hashes password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("failed to hash password: %w", ErrPasswordTooLong)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// DummyHash returns a fixed bcrypt hash at the default cost. Checking a password against it
// costs as much as a real check, so logins for unknown accounts take as long as real ones.
func DummyHash() string {
	dummyHashOnce.Do(func() {
		secret, err := GenerateSecureRandomString(32)
		if err != nil {
			secret = "auth_api-unmatchable-password"
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("crypto: cannot build dummy hash: %v", err))
		}
		dummyHash = string(hash)
	})
	return dummyHash
}
