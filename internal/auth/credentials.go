package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials - пароль не совпал
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier проверяет пароль против сохраненного значения.
// NeedsRehash сообщает, что значение нужно заменить на bcrypt-хеш после успешного входа.
type CredentialVerifier interface {
	Verify(password string) error
	NeedsRehash() bool
}

type bcryptCredential struct {
	hash []byte
}

func (c bcryptCredential) Verify(password string) error {
	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (bcryptCredential) NeedsRehash() bool { return false }

// legacyPlaintextCredential - пароли администраторов, сохраненные до перехода на bcrypt
type legacyPlaintextCredential struct {
	value string
}

func (c legacyPlaintextCredential) Verify(password string) error {
	if c.value == "" || subtle.ConstantTimeCompare([]byte(c.value), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func (legacyPlaintextCredential) NeedsRehash() bool { return true }

// NewCredentialVerifier выбирает вариант по формату сохраненного значения
func NewCredentialVerifier(stored string) CredentialVerifier {
	if isBcryptHash(stored) {
		return bcryptCredential{hash: []byte(stored)}
	}
	return legacyPlaintextCredential{value: stored}
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword возвращает bcrypt-хеш
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
