// Package auth is tasker's authentication service: email/password
// accounts with bcrypt hashes, JWT session tokens persisted between CLI
// invocations, and password reset through emailed tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/cloudsbay/tasker/internal/idgen"
	"github.com/cloudsbay/tasker/internal/notification"
	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// Sentinel errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email address is already in use")
	ErrNoSession          = errors.New("not signed in")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrResetNotDelivered  = errors.New("password reset could not be delivered")
)

// Defaults for token lifetimes.
const (
	DefaultSessionTTL = 720 * time.Hour
	DefaultResetTTL   = 30 * time.Minute
)

// Notifier delivers password-reset tokens.
type Notifier interface {
	Dispatch(ctx context.Context, payload *notification.ResetPayload) []notification.DispatchResult
}

// Provider implements sign-in, sign-up and session management over an
// AccountStore.
type Provider struct {
	accounts   storage.AccountStore
	sessions   SessionStore
	tokens     *TokenManager
	notifier   Notifier
	sessionTTL time.Duration
	resetTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithSessionTTL sets how long a sign-in lasts.
func WithSessionTTL(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.sessionTTL = d
		}
	}
}

// WithResetTTL sets how long a reset token stays valid.
func WithResetTTL(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.resetTTL = d
		}
	}
}

// WithNotifier sets where reset tokens are sent.
func WithNotifier(n Notifier) Option {
	return func(p *Provider) { p.notifier = n }
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProvider creates a provider. secret signs session and reset tokens.
func NewProvider(accounts storage.AccountStore, sessions SessionStore, secret []byte, opts ...Option) (*Provider, error) {
	if accounts == nil || sessions == nil {
		return nil, errors.New("auth: account and session stores are required")
	}
	tokens, err := NewTokenManager(secret)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		accounts:   accounts,
		sessions:   sessions,
		tokens:     tokens,
		notifier:   notification.NewDispatcher(nil),
		sessionTTL: DefaultSessionTTL,
		resetTTL:   DefaultResetTTL,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	tokens.now = p.now
	return p, nil
}

// SignUp creates an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := p.now().UTC()
	acct := &types.Account{
		UID:          idgen.NewAccountID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	p.logger.Info("account created", "uid", acct.UID)
	return p.startSession(acct)
}

// SignIn verifies credentials and persists a new session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	acct, err := p.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	ok, err := CheckPassword(acct.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return p.startSession(acct)
}

func (p *Provider) startSession(acct *types.Account) (*Session, error) {
	token, exp, err := p.tokens.Issue(acct.UID, acct.Email, PurposeSession, "", p.sessionTTL)
	if err != nil {
		return nil, err
	}
	s := &Session{UID: acct.UID, Email: acct.Email, Token: token, ExpiresAt: exp.UTC()}
	if err := p.sessions.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOut forgets the current session. Signing out twice is not an error.
func (p *Provider) SignOut(context.Context) error {
	return p.sessions.Clear()
}

// CurrentSession returns the signed-in session or ErrNoSession. Expired or
// tampered sessions are cleared.
func (p *Provider) CurrentSession(context.Context) (*Session, error) {
	s, err := p.sessions.Load()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	claims, err := p.tokens.Parse(s.Token, PurposeSession)
	if err != nil || claims.Subject != s.UID {
		p.logger.Debug("discarding stale session", "err", err)
		_ = p.sessions.Clear()
		return nil, ErrNoSession
	}
	return s, nil
}

// Delete removes the signed-in account's credentials and its session.
func (p *Provider) Delete(ctx context.Context) error {
	s, err := p.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if err := p.accounts.DeleteAccount(ctx, s.UID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete account: %w", err)
	}
	p.logger.Info("account deleted", "uid", s.UID)
	return p.sessions.Clear()
}

// UpdateEmail changes the sign-in email of the current account.
func (p *Provider) UpdateEmail(ctx context.Context, email string) error {
	s, err := p.CurrentSession(ctx)
	if err != nil {
		return err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := p.accounts.UpdateAccountEmail(ctx, s.UID, email); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrEmailInUse
		}
		return fmt.Errorf("update account email: %w", err)
	}
	acct := &types.Account{UID: s.UID, Email: email}
	_, err = p.startSession(acct)
	return err
}

// SendPasswordReset mails a reset token to email. Unknown addresses get
// the same nil result as known ones so the call cannot probe for accounts.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	acct, err := p.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}
	token, exp, err := p.tokens.Issue(acct.UID, acct.Email, PurposeReset, stampOf(acct.PasswordHash), p.resetTTL)
	if err != nil {
		return err
	}
	results := p.notifier.Dispatch(ctx, notification.NewResetPayload(acct.Email, token, exp))
	if !notification.Delivered(results) {
		return ErrResetNotDelivered
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a token from
// SendPasswordReset. Each token works once.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := p.tokens.Parse(strings.TrimSpace(token), PurposeReset)
	if err != nil {
		return err
	}
	acct, err := p.accounts.GetAccount(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}
	if claims.Stamp != stampOf(acct.PasswordHash) {
		return ErrInvalidToken
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := p.accounts.UpdatePasswordHash(ctx, acct.UID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	p.logger.Info("password reset", "uid", acct.UID)
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
