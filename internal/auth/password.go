package auth

import (
	"errors"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

const DefaultPasswordCost = 12

var passwordCost atomic.Int64

func init() { passwordCost.Store(DefaultPasswordCost) }

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), int(passwordCost.Load()))
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// SetPasswordCostForTests lowers the bcrypt cost. Only intended for test use.
func SetPasswordCostForTests(cost int) {
	passwordCost.Store(int64(cost))
}
