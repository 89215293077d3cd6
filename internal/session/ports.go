package session

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned by a ProfileStore when no document exists for an id.
var ErrProfileNotFound = errors.New("session: profile not found")

// IdentityProvider authenticates accounts. A successful CreateAccount or
// VerifyCredentials leaves the account signed in.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (string, error)
	VerifyCredentials(ctx context.Context, email, password string) (string, error)
	// CurrentAccountID returns "" with a nil error when no session is active.
	CurrentAccountID(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// ProfileStore persists profile documents keyed by account id.
type ProfileStore interface {
	Write(ctx context.Context, id string, doc ProfileDocument) error
	Read(ctx context.Context, id string) (ProfileDocument, error)
}
