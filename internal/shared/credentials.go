package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Credential is the persisted proof of a signed-in account for one installation.
type Credential struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// CredentialStore keeps the current credential in Redis so a restarted process
// can rebuild its session.
type CredentialStore struct {
	client redis.Cmdable
	key    string
}

// NewCredentialStore constructs a store bound to the installation id.
func NewCredentialStore(client redis.Cmdable, installationID string) *CredentialStore {
	return &CredentialStore{client: client, key: credentialKey(installationID)}
}

// Save replaces the stored credential. A ttl of zero keeps it until cleared.
func (s *CredentialStore) Save(ctx context.Context, cred Credential, ttl time.Duration) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("shared: encode credential: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("shared: save credential: %w", err)
	}
	return nil
}

// Load returns the stored credential or ErrNoCredential.
func (s *CredentialStore) Load(ctx context.Context) (*Credential, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("shared: load credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, fmt.Errorf("shared: decode credential: %w", err)
	}
	if cred.Token == "" {
		return nil, ErrNoCredential
	}
	return &cred, nil
}

// Clear removes the stored credential. Clearing an empty slot is not an error.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("shared: clear credential: %w", err)
	}
	return nil
}

func credentialKey(installationID string) string {
	return "session:" + installationID
}
