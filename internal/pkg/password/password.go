package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

// ErrMismatch is returned by Compare for a wrong password or a corrupt hash.
var ErrMismatch = fmt.Errorf("password mismatch: %w", appErr.ErrUnauthorized)

// Hash bcrypts plain. Passwords longer than 72 bytes are rejected rather than truncated.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("password exceeds 72 bytes: %w", appErr.ErrInvalid)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func Compare(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrMismatch
	}
	return nil
}
