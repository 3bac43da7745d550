package cart

import (
	"fmt"
	"strings"
)

// IdentityKind distinguishes signed-in owners from anonymous sessions.
type IdentityKind string

const (
	IdentityUser  IdentityKind = "user"
	IdentityGuest IdentityKind = "guest"
)

// Identity owns a cart. It is either a UserIdentity or a GuestIdentity.
type Identity interface {
	Kind() IdentityKind
	Value() string
	isIdentity()
}

// UserIdentity is a signed-in user.
type UserIdentity struct {
	userID string
}

// NewUserIdentity validates a user id.
func NewUserIdentity(raw string) (UserIdentity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserIdentity{}, fmt.Errorf("%w: empty user id", ErrMissingIdentity)
	}
	return UserIdentity{userID: trimmed}, nil
}

func (identity UserIdentity) Kind() IdentityKind { return IdentityUser }
func (identity UserIdentity) Value() string      { return identity.userID }
func (identity UserIdentity) isIdentity()        {}

// GuestIdentity is an anonymous browser session.
type GuestIdentity struct {
	sessionToken string
}

// NewGuestIdentity validates a session token.
func NewGuestIdentity(raw string) (GuestIdentity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return GuestIdentity{}, fmt.Errorf("%w: empty session token", ErrMissingIdentity)
	}
	return GuestIdentity{sessionToken: trimmed}, nil
}

func (identity GuestIdentity) Kind() IdentityKind { return IdentityGuest }
func (identity GuestIdentity) Value() string      { return identity.sessionToken }
func (identity GuestIdentity) isIdentity()        {}

// IdentityFrom picks the user when present and falls back to the session token.
func IdentityFrom(userID string, sessionToken string) (Identity, error) {
	if strings.TrimSpace(userID) != "" {
		return NewUserIdentity(userID)
	}
	if strings.TrimSpace(sessionToken) != "" {
		return NewGuestIdentity(sessionToken)
	}
	return nil, ErrMissingIdentity
}
