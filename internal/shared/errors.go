package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrNoCredential indicates no credential is stored for this installation.
	ErrNoCredential = errors.New("no stored credential")
)
