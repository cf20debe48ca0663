// Package auth implements the access gate in front of the claims pages.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrUnknownUser = errors.New("incorrect username")
	ErrWrongPIN    = errors.New("incorrect PIN")
)

// Identity is the user an authenticated session belongs to.
type Identity struct {
	Username string
}

// Authenticator checks a username and PIN pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, pin string) (Identity, error)
}

// Static accepts exactly one configured username and PIN.
type Static struct {
	username string
	pin      string
}

func NewStatic(username, pin string) *Static {
	return &Static{username: username, pin: pin}
}

// Authenticate reports ErrUnknownUser when the username does not match and
// ErrWrongPIN when only the PIN is wrong.
func (s *Static) Authenticate(_ context.Context, username, pin string) (Identity, error) {
	username = strings.TrimSpace(username)
	if !equal(username, s.username) {
		return Identity{}, ErrUnknownUser
	}
	if !equal(pin, s.pin) {
		return Identity{}, ErrWrongPIN
	}
	return Identity{Username: s.username}, nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
