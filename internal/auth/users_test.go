// ABOUTME: Tests for the static user registry
// ABOUTME: Covers bcrypt verification and case-insensitive email lookup

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	return NewRegistry([]User{
		{Email: "Ada@Example.com", Name: "Ada", PasswordHash: hash},
	})
}

func TestRegistry_Authenticate(t *testing.T) {
	r := newTestRegistry(t)

	u, err := r.Authenticate("ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "Ada@Example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
}

func TestRegistry_AuthenticateEmailIsCaseInsensitive(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Authenticate("ADA@EXAMPLE.COM", "correct horse")
	assert.NoError(t, err)
}

func TestRegistry_AuthenticateWrongPassword(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Authenticate("ada@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegistry_AuthenticateUnknownUser(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Authenticate("nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials,
		"unknown email and wrong password must be indistinguishable")
}

func TestRegistry_Lookup(t *testing.T) {
	r := newTestRegistry(t)

	assert.NotNil(t, r.Lookup("ada@example.com"))
	assert.Nil(t, r.Lookup("nobody@example.com"))
}
