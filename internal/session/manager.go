package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SignUpRequest carries sign-up input. Callers trim and validate the fields
// before calling; the password is passed through untouched.
type SignUpRequest struct {
	FirstName         string
	LastName          string
	Email             string
	PhoneNumber       string
	PreferredLanguage string
	Password          string
}

// Observer receives one call per completed operation.
type Observer interface {
	ObserveAuth(op, outcome string)
}

// Manager is the single place that calls both the identity provider and the
// profile store within one logical operation. It never returns raw errors to
// callers: every outcome is a Result or a boolean.
type Manager struct {
	idp      IdentityProvider
	store    ProfileStore
	logger   *slog.Logger
	observer Observer
	clock    func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for orphaned accounts and silent failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithObserver attaches an operation observer, typically metrics.
func WithObserver(observer Observer) Option {
	return func(m *Manager) { m.observer = observer }
}

// NewManager constructs a Manager over the given collaborators.
func NewManager(idp IdentityProvider, store ProfileStore, opts ...Option) *Manager {
	m := &Manager{
		idp:    idp,
		store:  store,
		logger: slog.Default(),
		clock:  monotonicClock(time.Now),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "session_manager"))
	return m
}

// monotonicClock returns UTC instants truncated to the microsecond precision
// PostgreSQL stores. Successive readings are strictly increasing, so an update
// always moves updatedAt forward even within one microsecond.
func monotonicClock(source func() time.Time) func() time.Time {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := source().UTC().Truncate(time.Microsecond)
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}
		last = now
		return now
	}
}

// SignUp creates the account and then its profile. If the profile write fails
// the account is left without a profile and a ProfileWriteError is reported.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) Result {
	id, err := m.idp.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return m.fail("sign_up", failure(ProviderError, err, MsgUnknownSignUp))
	}
	if id == "" {
		return m.fail("sign_up", &Failure{Kind: ProviderError, Message: MsgUserCreationFailed})
	}

	now := m.clock()
	profile := Profile{
		ID:                id,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		PreferredLanguage: req.PreferredLanguage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Write(ctx, id, profile.Document()); err != nil {
		m.logger.Warn("account created without profile",
			slog.String("account_id", id),
			slog.Any("error", err))
		return m.fail("sign_up", failure(ProfileWriteError, err, MsgUnknownSignUp))
	}

	m.observe("sign_up", "success")
	return Success{Profile: profile}
}

// SignIn verifies credentials and loads the matching profile.
func (m *Manager) SignIn(ctx context.Context, email, password string) Result {
	id, err := m.idp.VerifyCredentials(ctx, email, password)
	if err != nil {
		return m.fail("sign_in", failure(ProviderError, err, MsgUnknownSignIn))
	}
	if id == "" {
		return m.fail("sign_in", &Failure{Kind: ProviderError, Message: MsgAuthFailed})
	}

	doc, err := m.store.Read(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			m.logger.Warn("signed in account has no profile", slog.String("account_id", id))
			return m.fail("sign_in", &Failure{Kind: ProfileNotFound, Message: MsgProfileNotFound, Err: err})
		}
		return m.fail("sign_in", failure(ProviderError, err, MsgUnknownSignIn))
	}

	m.observe("sign_in", "success")
	return Success{Profile: doc.Decode(m.clock())}
}

// SignOut ends the provider session and reports whether that succeeded.
func (m *Manager) SignOut(ctx context.Context) bool {
	if err := m.idp.SignOut(ctx); err != nil {
		m.logger.Warn("sign out failed", slog.Any("error", err))
		m.observe("sign_out", "failure")
		return false
	}
	m.observe("sign_out", "success")
	return true
}

// SessionStatus is the outcome of one current-session lookup.
type SessionStatus int

const (
	// SessionAbsent means no session, or the session lookup failed.
	SessionAbsent SessionStatus = iota
	// SessionWithoutProfile means a session exists but its profile could not be read.
	SessionWithoutProfile
	// SessionActive means the session and its profile were both found.
	SessionActive
)

// LookupSession resolves the current account once and loads its profile.
// Failures are logged at debug level and folded into the status.
func (m *Manager) LookupSession(ctx context.Context) (Profile, SessionStatus) {
	id, err := m.idp.CurrentAccountID(ctx)
	if err != nil {
		m.logger.Debug("current session lookup failed", slog.Any("error", err))
		return Profile{}, SessionAbsent
	}
	if id == "" {
		return Profile{}, SessionAbsent
	}
	doc, err := m.store.Read(ctx, id)
	if err != nil {
		m.logger.Debug("current profile fetch failed", slog.String("account_id", id), slog.Any("error", err))
		return Profile{}, SessionWithoutProfile
	}
	return doc.Decode(m.clock()), SessionActive
}

// CurrentSessionProfile returns the profile of the signed-in account. A missing
// session, a failed lookup and a missing document all report false.
func (m *Manager) CurrentSessionProfile(ctx context.Context) (Profile, bool) {
	p, status := m.LookupSession(ctx)
	return p, status == SessionActive
}

// UpdateProfile overwrites the stored document with p, stamping UpdatedAt.
func (m *Manager) UpdateProfile(ctx context.Context, p Profile) (Profile, bool) {
	p.UpdatedAt = m.clock()
	if err := m.store.Write(ctx, p.ID, p.Document()); err != nil {
		m.logger.Warn("profile update failed", slog.String("account_id", p.ID), slog.Any("error", err))
		m.observe("update_profile", "failure")
		return Profile{}, false
	}
	m.observe("update_profile", "success")
	return p, true
}

// IsAuthenticated reports whether the provider has a current session. It does
// not check that a profile exists.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	id, err := m.idp.CurrentAccountID(ctx)
	return err == nil && id != ""
}

func (m *Manager) fail(op string, f *Failure) *Failure {
	m.observe(op, f.Kind.String())
	return f
}

func (m *Manager) observe(op, outcome string) {
	if m.observer != nil {
		m.observer.ObserveAuth(op, outcome)
	}
}
