package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = bcrypt.DefaultCost

// maxPasswordBytes is bcrypt's input limit; longer passwords are rejected
// instead of being silently truncated.
const maxPasswordBytes = 72

var (
	decoyOnce sync.Once
	decoyHash []byte
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword checks password against a stored hash. A mismatch is
// reported as ErrInvalidCredentials; other errors mean a corrupt hash.
func ComparePassword(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return err
}

// burnCompare spends the same work as a real comparison so logins for
// unknown usernames take as long as wrong passwords.
func burnCompare(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("snapnest-decoy"), passwordCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
}
