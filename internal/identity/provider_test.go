package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoscope/ecoscope/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func (r *memoryRepo) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accounts == nil {
		r.accounts = map[string]Account{}
	}
	if _, ok := r.accounts[account.Email]; ok {
		return ErrEmailInUse
	}
	r.accounts[account.Email] = account
	return nil
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &account, nil
}

func newTestProvider(t *testing.T) (*LocalProvider, *shared.CredentialStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := shared.NewCredentialStore(client, "test")
	p := NewLocalProvider(&memoryRepo{}, NewTokenIssuer("secret", time.Hour), store, nil)
	p.cost = bcrypt.MinCost
	return p, store, mr
}

func TestLocalProviderCreateAccountSignsIn(t *testing.T) {
	p, store, mr := newTestProvider(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, " Jane@X.io ", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.True(t, mr.Exists("session:test"))

	cred, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, cred.AccountID)

	current, err := p.CurrentAccountID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, current)
}

func TestLocalProviderDuplicateEmail(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "jane@x.io", "secret1")
	require.NoError(t, err)
	_, err = p.CreateAccount(ctx, "JANE@x.io", "other12")
	require.ErrorIs(t, err, ErrEmailInUse)
}

func TestLocalProviderVerifyCredentials(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, "jane@x.io", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	got, err := p.VerifyCredentials(ctx, "JANE@x.io", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = p.VerifyCredentials(ctx, "jane@x.io", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.VerifyCredentials(ctx, "nobody@x.io", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalProviderSignOutClearsSession(t *testing.T) {
	p, _, mr := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "jane@x.io", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	assert.False(t, mr.Exists("session:test"))

	current, err := p.CurrentAccountID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestLocalProviderExpiredTokenClearsSlot(t *testing.T) {
	p, store, mr := newTestProvider(t)
	ctx := context.Background()

	p.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, issuedAt, err := p.tokens.Issue("acct-1")
	require.NoError(t, err)
	p.tokens.now = time.Now
	require.NoError(t, store.Save(ctx, shared.Credential{Token: token, AccountID: "acct-1", IssuedAt: issuedAt}, 0))

	current, err := p.CurrentAccountID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)
	assert.False(t, mr.Exists("session:test"))
}
