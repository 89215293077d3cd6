// Package kratos implements the identity provider on top of Ory Kratos
// native self-service flows.
package kratos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	kratos "github.com/ory/kratos-client-go"

	"github.com/ecoscope/ecoscope/internal/session"
	"github.com/ecoscope/ecoscope/internal/shared"
)

// CredentialSlot persists the Kratos session token of the signed-in identity.
type CredentialSlot interface {
	Save(ctx context.Context, cred shared.Credential, ttl time.Duration) error
	Load(ctx context.Context) (*shared.Credential, error)
	Clear(ctx context.Context) error
}

// Provider authenticates through the Kratos public API.
type Provider struct {
	api    *kratos.APIClient
	slot   CredentialSlot
	logger *slog.Logger
	now    func() time.Time
}

// NewAPIClient builds a Kratos public API client.
func NewAPIClient(publicURL string, timeout time.Duration) *kratos.APIClient {
	cfg := kratos.NewConfiguration()
	cfg.Servers = []kratos.ServerConfiguration{{URL: strings.TrimRight(publicURL, "/")}}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	cfg.DefaultHeader = map[string]string{"Accept": "application/json"}
	return kratos.NewAPIClient(cfg)
}

// NewProvider wires the Kratos provider.
func NewProvider(api *kratos.APIClient, slot CredentialSlot, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		api:    api,
		slot:   slot,
		logger: logger.With(slog.String("component", "identity_kratos")),
		now:    time.Now,
	}
}

// CreateAccount registers the identity and stores the issued session token.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	flow, _, err := p.api.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		return "", describe("create registration flow", err)
	}

	method := kratos.UpdateRegistrationFlowWithPasswordMethod{
		Method:   "password",
		Password: password,
		Traits:   map[string]interface{}{"email": email},
	}
	resp, _, err := p.api.FrontendAPI.UpdateRegistrationFlow(ctx).
		Flow(flow.Id).
		UpdateRegistrationFlowBody(kratos.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(&method)).
		Execute()
	if err != nil {
		return "", describe("submit registration", err)
	}

	id := resp.Identity.Id
	if token := resp.GetSessionToken(); token != "" {
		sess := resp.GetSession()
		if err := p.save(ctx, id, token, sess.ExpiresAt); err != nil {
			return "", err
		}
	}
	return id, nil
}

// VerifyCredentials runs a native login flow and stores the session token.
func (p *Provider) VerifyCredentials(ctx context.Context, email, password string) (string, error) {
	flow, _, err := p.api.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return "", describe("create login flow", err)
	}

	method := kratos.UpdateLoginFlowWithPasswordMethod{
		Method:     "password",
		Identifier: email,
		Password:   password,
	}
	resp, _, err := p.api.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(kratos.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&method)).
		Execute()
	if err != nil {
		return "", describe("submit login", err)
	}

	sess := resp.GetSession()
	id := sess.GetIdentity().Id
	if err := p.save(ctx, id, resp.GetSessionToken(), sess.ExpiresAt); err != nil {
		return "", err
	}
	return id, nil
}

// CurrentAccountID resolves the stored token through ToSession. A rejected
// token is cleared and reported as no session.
func (p *Provider) CurrentAccountID(ctx context.Context) (string, error) {
	cred, err := p.slot.Load(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNoCredential) {
			return "", nil
		}
		return "", err
	}

	sess, httpResp, err := p.api.FrontendAPI.ToSession(ctx).XSessionToken(cred.Token).Execute()
	if err != nil {
		if httpResp != nil && (httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden) {
			if clearErr := p.slot.Clear(ctx); clearErr != nil {
				p.logger.Warn("clear credential", slog.Any("error", clearErr))
			}
			return "", nil
		}
		return "", describe("whoami", err)
	}
	return sess.GetIdentity().Id, nil
}

// SignOut revokes the session token. The local slot is cleared even when the
// revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	cred, err := p.slot.Load(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNoCredential) {
			return nil
		}
		return err
	}

	_, logoutErr := p.api.FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(kratos.PerformNativeLogoutBody{SessionToken: cred.Token}).
		Execute()
	if err := p.slot.Clear(ctx); err != nil {
		return err
	}
	if logoutErr != nil {
		return describe("logout", logoutErr)
	}
	return nil
}

func (p *Provider) save(ctx context.Context, id, token string, expires *time.Time) error {
	if token == "" {
		return fmt.Errorf("kratos: no session token issued for %s", id)
	}
	var ttl time.Duration
	if expires != nil {
		ttl = expires.Sub(p.now())
		if ttl <= 0 {
			ttl = 0
		}
	}
	return p.slot.Save(ctx, shared.Credential{Token: token, AccountID: id, IssuedAt: p.now().UTC()}, ttl)
}

var _ session.IdentityProvider = (*Provider)(nil)
