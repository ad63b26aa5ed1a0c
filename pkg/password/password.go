// Package password hashes and checks user passwords with bcrypt.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Hash returns the bcrypt hash of plain, suitable for AUTH_USERS.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(b), err
}

// Matches reports whether plain matches the bcrypt hash.
func Matches(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
