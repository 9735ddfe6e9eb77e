// ABOUTME: Static user registry with bcrypt password verification
// ABOUTME: Users are declared in configuration; there is no signup flow

package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong
// password. Callers must not distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is one configured account
type User struct {
	Email        string
	Name         string
	PasswordHash string // bcrypt
}

// Registry holds the configured users, keyed by lowercased email
type Registry struct {
	users map[string]User
}

// NewRegistry builds a registry from the configured user list
func NewRegistry(users []User) *Registry {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[strings.ToLower(u.Email)] = u
	}
	return &Registry{users: m}
}

// Authenticate checks email and password against the registry.
// The email match is case-insensitive; the password is compared against
// the stored bcrypt hash.
func (r *Registry) Authenticate(email, password string) (*User, error) {
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		// Burn a comparison anyway so a missing account costs the same
		// as a wrong password.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	out := u
	return &out, nil
}

// Lookup returns the user for email, or nil if not configured
func (r *Registry) Lookup(email string) *User {
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil
	}
	out := u
	return &out
}

// HashPassword produces a bcrypt hash suitable for the users config
// section
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is a valid bcrypt hash of a random string, used to equalize
// timing for unknown accounts
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
