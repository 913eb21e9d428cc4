// Package account coordinates authentication state and the signed-in
// user's profile: sign-in and registration, a live subscription to
// profile changes, and the profile mutations.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/cloudsbay/tasker/internal/auth"
	"github.com/cloudsbay/tasker/internal/eventbus"
	"github.com/cloudsbay/tasker/internal/idgen"
	"github.com/cloudsbay/tasker/internal/state"
	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// ProfilePicturePrefix is the object path prefix for uploaded photos.
const ProfilePicturePrefix = "profile_pictures/"

// ErrNoSession is returned by operations that need a signed-in user.
var ErrNoSession = auth.ErrNoSession

// Authenticator is the authentication service.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context) error
	Delete(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	CurrentSession(ctx context.Context) (*auth.Session, error)
}

// emailUpdater is implemented by authenticators that can change the
// sign-in email along with the profile.
type emailUpdater interface {
	UpdateEmail(ctx context.Context, email string) error
}

// ObjectStore stores uploaded files and returns a link to them.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// ProfileFeed pushes changes to a profile record.
type ProfileFeed interface {
	Watch(ctx context.Context, uid string, fn func(*types.User)) (eventbus.Subscription, error)
}

// Registration is the sign-up form. Password is used for the account and
// never stored with the profile.
type Registration struct {
	Email       string
	Password    string
	Name        string
	Username    string
	CountryCode string
	PhoneNumber string
}

// MinPhoneDigits is the shortest accepted national phone number.
const MinPhoneDigits = 10

// Validate checks the required registration fields.
func (r Registration) Validate() error {
	switch {
	case strings.TrimSpace(r.Email) == "":
		return errors.New("email is required")
	case r.Password == "":
		return errors.New("password is required")
	case strings.TrimSpace(r.Username) == "":
		return errors.New("username is required")
	case strings.TrimSpace(r.PhoneNumber) == "":
		return errors.New("phone number is required")
	case PhoneDigits(r.PhoneNumber) < MinPhoneDigits:
		return errors.New("please enter a valid phone number")
	}
	return nil
}

// PhoneDigits counts the digits in a phone number, ignoring separators.
func PhoneDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// FormatPhone joins a country code and a national number as
// +<country code><number>.
func FormatPhone(countryCode, number string) string {
	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	if cc == "" {
		cc = "1"
	}
	return "+" + cc + strings.TrimSpace(number)
}

// Coordinator owns AuthState and the cached profile. At most one live
// profile subscription exists at any time.
type Coordinator struct {
	auth     Authenticator
	profiles storage.ProfileStore
	objects  ObjectStore
	feed     ProfileFeed
	logger   *slog.Logger

	authState *state.Value[AuthState]
	profile   *state.Value[*types.User]

	session atomic.Pointer[auth.Session]
	sub     atomic.Pointer[liveSubscription]

	// Subscriptions outlive the call that opened them; they end on Close.
	baseCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

type liveSubscription struct {
	uid string
	sub eventbus.Subscription
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObjectStore enables UploadProfilePhoto.
func WithObjectStore(o ObjectStore) Option {
	return func(c *Coordinator) { c.objects = o }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a coordinator in the Unauthenticated state. Call
// CheckSession to pick up an existing sign-in.
func New(authn Authenticator, profiles storage.ProfileStore, feed ProfileFeed, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		auth:      authn,
		profiles:  profiles,
		feed:      feed,
		logger:    slog.Default(),
		authState: state.New(Unauthenticated()),
		profile:   state.New[*types.User](nil),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthState publishes the authentication state.
func (c *Coordinator) AuthState() *state.Value[AuthState] { return c.authState }

// Profile publishes the signed-in user's profile, nil when signed out or
// not yet loaded.
func (c *Coordinator) Profile() *state.Value[*types.User] { return c.profile }

// Session returns the current session, if any.
func (c *Coordinator) Session() (*auth.Session, bool) {
	s := c.session.Load()
	return s, s != nil
}

// OwnerID returns the task owner id of the signed-in user.
func (c *Coordinator) OwnerID() (string, bool) {
	s := c.session.Load()
	if s == nil {
		return "", false
	}
	return idgen.OwnerID(s.UID), true
}

// CheckSession restores a persisted sign-in. Without one the state is
// Unauthenticated.
func (c *Coordinator) CheckSession(ctx context.Context) error {
	sess, err := c.auth.CurrentSession(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		c.clearLocal()
		return nil
	}
	if err != nil {
		c.authState.Set(Failed(err.Error()))
		return fmt.Errorf("check session: %w", err)
	}
	c.session.Store(sess)
	c.authState.Set(Authenticated())
	return c.attach(ctx, sess.UID)
}

// Login signs in and loads the profile.
func (c *Coordinator) Login(ctx context.Context, email, password string) error {
	c.authState.Set(Loading())
	sess, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		c.authState.Set(Failed(messageOr(err, "Login failed")))
		return err
	}
	c.session.Store(sess)
	c.authState.Set(Authenticated())
	c.logger.Info("signed in", "uid", sess.UID)
	return c.attach(ctx, sess.UID)
}

// Register creates the account, stores the profile and then loads it.
func (c *Coordinator) Register(ctx context.Context, r Registration) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c.authState.Set(Loading())
	sess, err := c.auth.SignUp(ctx, strings.TrimSpace(r.Email), r.Password)
	if err != nil {
		c.authState.Set(Failed(messageOr(err, "Registration failed")))
		return err
	}
	c.session.Store(sess)
	c.authState.Set(Authenticated())

	user := &types.User{
		Email:       sess.Email,
		Name:        strings.TrimSpace(r.Name),
		Username:    strings.TrimSpace(r.Username),
		PhoneNumber: FormatPhone(r.CountryCode, r.PhoneNumber),
	}
	if err := c.profiles.SaveProfile(ctx, sess.UID, user); err != nil {
		c.authState.Set(Failed(messageOr(err, "Registration failed")))
		return fmt.Errorf("save profile: %w", err)
	}
	c.logger.Info("registered", "uid", sess.UID)
	return c.attach(ctx, sess.UID)
}

// attach fetches the profile once and opens the live subscription.
func (c *Coordinator) attach(ctx context.Context, uid string) error {
	u, err := c.profiles.GetProfile(ctx, uid)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.logger.Debug("no profile record", "uid", uid)
	case err != nil:
		c.authState.Set(Failed(messageOr(err, "Failed to fetch user data")))
		return fmt.Errorf("fetch profile: %w", err)
	default:
		c.profile.Set(u)
	}
	if err := c.subscribe(uid); err != nil {
		c.logger.Warn("profile subscription failed", "uid", uid, "err", err)
		return err
	}
	return nil
}

// subscribe opens a live subscription for uid and stops whichever one it
// replaces, so concurrent callers converge on a single live subscription.
func (c *Coordinator) subscribe(uid string) error {
	h := &liveSubscription{uid: uid}
	sub, err := c.feed.Watch(c.baseCtx, uid, func(u *types.User) { c.onProfile(h, u) })
	if err != nil {
		return fmt.Errorf("watch profile: %w", err)
	}
	h.sub = sub
	if old := c.sub.Swap(h); old != nil {
		old.sub.Stop()
	}
	return nil
}

func (c *Coordinator) onProfile(h *liveSubscription, u *types.User) {
	if c.sub.Load() != h {
		return // replaced or stopped
	}
	if u == nil {
		c.logger.Debug("profile record removed", "uid", h.uid)
		return
	}
	c.profile.Set(u)
}

func (c *Coordinator) unsubscribe() {
	if old := c.sub.Swap(nil); old != nil {
		old.sub.Stop()
	}
}

// Subscribed reports whether a live profile subscription is open.
func (c *Coordinator) Subscribed() bool { return c.sub.Load() != nil }

func (c *Coordinator) clearLocal() {
	c.unsubscribe()
	c.session.Store(nil)
	c.profile.Set(nil)
	c.authState.Set(Unauthenticated())
}

// Logout signs out and forgets all local account state. Local state is
// cleared even when the sign-out call fails.
func (c *Coordinator) Logout(ctx context.Context) error {
	err := c.auth.SignOut(ctx)
	c.clearLocal()
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	c.logger.Info("signed out")
	return nil
}

// UpdateName sets the profile's display name.
func (c *Coordinator) UpdateName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	return c.updateField(ctx, types.FieldName, name)
}

// UpdateEmail sets the profile email and, when supported, the sign-in email.
func (c *Coordinator) UpdateEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	if err := c.updateField(ctx, types.FieldEmail, email); err != nil {
		return err
	}
	if eu, ok := c.auth.(emailUpdater); ok {
		if err := eu.UpdateEmail(ctx, email); err != nil {
			return fmt.Errorf("update sign-in email: %w", err)
		}
		if sess, err := c.auth.CurrentSession(ctx); err == nil {
			c.session.Store(sess)
		}
	}
	return nil
}

// UpdatePhoneNumber sets the profile phone number.
func (c *Coordinator) UpdatePhoneNumber(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.New("phone number is required")
	}
	return c.updateField(ctx, types.FieldPhoneNumber, phone)
}

func (c *Coordinator) updateField(ctx context.Context, field types.ProfileField, value string) error {
	sess := c.session.Load()
	if sess == nil {
		return ErrNoSession
	}
	if err := c.profiles.UpdateProfileField(ctx, sess.UID, field, value); err != nil {
		c.logger.Warn("profile update failed", "field", string(field), "err", err)
		return fmt.Errorf("update %s: %w", field, err)
	}
	c.profile.Update(func(u *types.User) *types.User {
		if u == nil {
			return nil
		}
		u = u.Clone()
		field.Apply(u, value)
		return u
	})
	return nil
}

// UploadProfilePhoto stores the image as profile_pictures/<uid>.jpg and
// records the returned link on the profile.
func (c *Coordinator) UploadProfilePhoto(ctx context.Context, data []byte, contentType string) (string, error) {
	sess := c.session.Load()
	if sess == nil {
		return "", ErrNoSession
	}
	if c.objects == nil {
		return "", errors.New("profile photos are not configured")
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	url, err := c.objects.Upload(ctx, ProfilePicturePrefix+sess.UID+".jpg", data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload profile photo: %w", err)
	}
	if err := c.updateField(ctx, types.FieldProfilePictureURL, url); err != nil {
		return "", err
	}
	return url, nil
}

// DeleteAccount removes the profile record, then the credentials, then
// the local session.
func (c *Coordinator) DeleteAccount(ctx context.Context) error {
	sess := c.session.Load()
	if sess == nil {
		return ErrNoSession
	}
	if err := c.profiles.DeleteProfile(ctx, sess.UID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := c.auth.Delete(ctx); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	c.clearLocal()
	c.logger.Info("account deleted", "uid", sess.UID)
	return nil
}

// ResetPassword asks the authentication service to send a reset message.
func (c *Coordinator) ResetPassword(ctx context.Context, email string) error {
	if err := c.auth.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

// Close stops the live subscription. The coordinator is unusable afterwards.
func (c *Coordinator) Close() {
	c.once.Do(func() {
		c.unsubscribe()
		c.cancel()
	})
}

func messageOr(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
