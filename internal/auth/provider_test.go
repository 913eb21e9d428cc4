package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsbay/tasker/internal/notification"
	"github.com/cloudsbay/tasker/internal/storage/memory"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// captureNotifier records reset payloads instead of sending them.
type captureNotifier struct {
	mu       sync.Mutex
	payloads []*notification.ResetPayload
	fail     bool
}

func (c *captureNotifier) Dispatch(_ context.Context, p *notification.ResetPayload) []notification.DispatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return []notification.DispatchResult{{Channel: "test", Success: !c.fail}}
}

func (c *captureNotifier) last() *notification.ResetPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *captureNotifier, *clock) {
	t.Helper()
	n := &captureNotifier{}
	c := &clock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	base := []Option{WithNotifier(n), WithLogger(quiet), WithClock(c.now)}
	p, err := NewProvider(memory.New(), &MemorySessionStore{}, []byte("test-secret"), append(base, opts...)...)
	require.NoError(t, err)
	return p, n, c
}

func TestSignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)

	s, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, s.UID)
	assert.NotEmpty(t, s.Token)

	cur, err := p.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.UID, cur.UID)

	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))
	_, err = p.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	again, err := p.SignIn(ctx, "ANN@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, s.UID, again.UID)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)

	_, err := p.SignUp(ctx, "not-an-email", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = p.SignUp(ctx, "ann@example.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "Ann@Example.com", "another1")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)
	_, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	_, err = p.SignIn(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "bob@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown email looks the same as a bad password")
	_, err = p.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestExpiredSessionIsCleared(t *testing.T) {
	ctx := context.Background()
	p, _, c := newTestProvider(t, WithSessionTTL(time.Hour))
	_, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	_, err = p.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	c.t = c.t.Add(-2 * time.Hour)
	_, err = p.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession, "stale session was removed, not just rejected")
}

func TestDeleteRemovesCredentials(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)
	_, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx))
	_, err = p.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = p.SignIn(ctx, "ann@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, p.Delete(ctx), ErrNoSession)
}

func TestUpdateEmail(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)
	_, err := p.SignUp(ctx, "bob@example.com", "hunter22")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)

	assert.ErrorIs(t, p.UpdateEmail(ctx, "bob@example.com"), ErrEmailInUse)
	require.NoError(t, p.UpdateEmail(ctx, "ann.lee@example.com"))

	s, err := p.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann.lee@example.com", s.Email)
	_, err = p.SignIn(ctx, "ann.lee@example.com", "hunter22")
	assert.NoError(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	p, n, _ := newTestProvider(t)
	_, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, p.SendPasswordReset(ctx, "ann@example.com"))
	payload := n.last()
	require.NotNil(t, payload)
	assert.Equal(t, "password_reset", payload.Type)
	assert.Equal(t, "ann@example.com", payload.Email)

	_, err = p.tokens.Parse(payload.Token, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken, "reset token is not a session token")

	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, payload.Token, "x"), ErrWeakPassword)
	require.NoError(t, p.ConfirmPasswordReset(ctx, payload.Token, "new-secret"))
	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, payload.Token, "third-one"), ErrInvalidToken, "token is single use")

	_, err = p.SignIn(ctx, "ann@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "ann@example.com", "new-secret")
	assert.NoError(t, err)
}

func TestPasswordResetUnknownEmailAndDelivery(t *testing.T) {
	ctx := context.Background()
	p, n, _ := newTestProvider(t)

	require.NoError(t, p.SendPasswordReset(ctx, "nobody@example.com"))
	assert.Nil(t, n.last(), "nothing sent for unknown addresses")

	_, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	n.fail = true
	assert.ErrorIs(t, p.SendPasswordReset(ctx, "ann@example.com"), ErrResetNotDelivered)
}

func TestResetTokenExpires(t *testing.T) {
	ctx := context.Background()
	p, n, c := newTestProvider(t, WithResetTTL(time.Minute))
	_, err := p.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, p.SendPasswordReset(ctx, "ann@example.com"))

	c.t = c.t.Add(2 * time.Minute)
	err = p.ConfirmPasswordReset(ctx, n.last().Token, "new-secret")
	assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
}

func TestNewProviderRequiresSecret(t *testing.T) {
	_, err := NewProvider(memory.New(), &MemorySessionStore{}, nil)
	assert.Error(t, err)
}
