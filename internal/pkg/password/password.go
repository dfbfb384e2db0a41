package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

// MaxBytes is the longest input bcrypt reads; longer input would be
// silently cut.
const MaxBytes = 72

func Hash(plain string) (string, error) {
	if len(plain) > MaxBytes {
		return "", appErr.NewValidationError("password", "must be at most 72 bytes")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns ErrUnauthorized when plain does not match hash.
func Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return appErr.ErrUnauthorized
	}
	return err
}
