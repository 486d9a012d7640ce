package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes pw with bcrypt. Costs outside bcrypt's range fall back to the default.
func HashPassword(pw string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

// ErrPasswordTooLong bcrypt only looks at the first 72 bytes.
var ErrPasswordTooLong = errors.New("password longer than 72 bytes")

// ValidatePassword enforces length bounds.
func ValidatePassword(pw string) error {
	if len(pw) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}
