package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoscope/ecoscope/internal/session"
	"github.com/ecoscope/ecoscope/internal/shared"
)

// CredentialSlot persists the credential of the signed-in account.
type CredentialSlot interface {
	Save(ctx context.Context, cred shared.Credential, ttl time.Duration) error
	Load(ctx context.Context) (*shared.Credential, error)
	Clear(ctx context.Context) error
}

// LocalProvider authenticates against the accounts table and keeps a signed
// token in the credential slot.
type LocalProvider struct {
	repo   Repository
	tokens *TokenIssuer
	slot   CredentialSlot
	logger *slog.Logger
	cost   int
	clock  func() time.Time
}

// NewLocalProvider wires the local identity provider.
func NewLocalProvider(repo Repository, tokens *TokenIssuer, slot CredentialSlot, logger *slog.Logger) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalProvider{
		repo:   repo,
		tokens: tokens,
		slot:   slot,
		logger: logger.With(slog.String("component", "identity_local")),
		cost:   bcrypt.DefaultCost,
		clock:  time.Now,
	}
}

// CreateAccount registers the account and signs it in.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("identity: hash password: %w", err)
	}
	account := Account{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    p.clock().UTC(),
	}
	if err := p.repo.Create(ctx, account); err != nil {
		return "", err
	}
	if err := p.signIn(ctx, account.ID); err != nil {
		return "", err
	}
	return account.ID, nil
}

// VerifyCredentials checks the password and signs the account in.
func (p *LocalProvider) VerifyCredentials(ctx context.Context, email, password string) (string, error) {
	account, err := p.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if err := p.signIn(ctx, account.ID); err != nil {
		return "", err
	}
	return account.ID, nil
}

// CurrentAccountID returns the subject of the stored token. Invalid or
// expired tokens are cleared and reported as no session.
func (p *LocalProvider) CurrentAccountID(ctx context.Context) (string, error) {
	cred, err := p.slot.Load(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNoCredential) {
			return "", nil
		}
		return "", err
	}
	subject, err := p.tokens.Parse(cred.Token)
	if err != nil {
		p.logger.Info("discarding stored credential", slog.Any("error", err))
		if clearErr := p.slot.Clear(ctx); clearErr != nil {
			p.logger.Warn("clear credential", slog.Any("error", clearErr))
		}
		return "", nil
	}
	return subject, nil
}

// SignOut forgets the stored token.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	return p.slot.Clear(ctx)
}

func (p *LocalProvider) signIn(ctx context.Context, accountID string) error {
	token, issuedAt, err := p.tokens.Issue(accountID)
	if err != nil {
		return err
	}
	cred := shared.Credential{Token: token, AccountID: accountID, IssuedAt: issuedAt.UTC()}
	return p.slot.Save(ctx, cred, p.tokens.TTL())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ session.IdentityProvider = (*LocalProvider)(nil)
