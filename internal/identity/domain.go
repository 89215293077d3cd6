package identity

import (
	"errors"
	"time"
)

// Account is an email/password identity owned by the local provider.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	// ErrEmailInUse is returned when sign-up reuses a registered email.
	ErrEmailInUse = errors.New("The email address is already in use by another account.")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("The email or password is incorrect.")
	// ErrInvalidToken indicates a credential that failed signature or expiry checks.
	ErrInvalidToken = errors.New("identity: invalid token")
)
