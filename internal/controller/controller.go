// Package controller orchestrates the session store and the auth
// gateway: session bootstrap on start, login, logout, refresh and the
// permission lookup backing the route guard.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/employd-dev/employd/internal/authz"
	"github.com/employd-dev/employd/internal/gateway"
	"github.com/employd-dev/employd/internal/routes"
	"github.com/employd-dev/employd/internal/session"
)

const (
	// DefaultBootstrapTimeout bounds session initialization.
	DefaultBootstrapTimeout = 8 * time.Second
	// DefaultLoginTimeout bounds an interactive sign-in.
	DefaultLoginTimeout = 10 * time.Second
)

// User-facing error messages published on the snapshot.
const (
	MsgBootstrapTimeout   = "authentication timeout"
	MsgConnectionTimeout  = "connection timeout"
	MsgInvalidCredentials = "invalid email or password"
	MsgNetworkError       = "network error, check your connection"
	MsgAuthError          = "authentication error"
	MsgProfileMissing     = "could not retrieve user profile"
	MsgInitError          = "initialization error"
	MsgRefreshError       = "could not refresh session"
)

// Credentials are the inputs to Login.
type Credentials struct {
	Email    string
	Password string
}

// Result is the outcome of Login. Login never returns an error; failures
// are mapped to a user-facing message here and on the snapshot.
type Result struct {
	Success bool
	Error   string
}

// Controller sequences gateway calls and reconciles their results into
// the store. It is the single writer of the session snapshot.
//
// The timeouts are advisory races: when one fires the UI is unblocked
// with an error, but the underlying call is not cancelled. A result
// arriving after its timer fired is discarded instead of overwriting
// state that has since been reset.
type Controller struct {
	store  *session.Store
	gw     gateway.Gateway
	perms  *authz.Table
	logger zerolog.Logger

	// navigate is the forced-navigation side effect after logout. It
	// exists so no cached protected view can stay visible.
	navigate func(path string)

	BootstrapTimeout time.Duration
	LoginTimeout     time.Duration

	closed        atomic.Bool
	bootstrapOnce sync.Once

	mu  sync.Mutex
	sub gateway.Subscription
}

// New creates a controller with the default permission table and
// timeouts.
func New(store *session.Store, gw gateway.Gateway, log zerolog.Logger) *Controller {
	return &Controller{
		store:            store,
		gw:               gw,
		perms:            authz.Default(),
		logger:           log,
		navigate:         func(string) {},
		BootstrapTimeout: DefaultBootstrapTimeout,
		LoginTimeout:     DefaultLoginTimeout,
	}
}

// SetPermissions replaces the role to permission table.
func (c *Controller) SetPermissions(t *authz.Table) {
	c.perms = t
}

// SetNavigator installs the post-logout navigation side effect.
func (c *Controller) SetNavigator(fn func(path string)) {
	if fn != nil {
		c.navigate = fn
	}
}

// alive reports whether the controller may still mutate the store.
func (c *Controller) alive() bool {
	return !c.closed.Load()
}

// Close tears the controller down: the auth-change subscription is
// cancelled and any still-running operation loses its right to mutate
// the store.
func (c *Controller) Close() {
	c.closed.Store(true)
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

type bootstrapResult struct {
	sess    *gateway.Session
	profile *session.User
	err     error
}

// Bootstrap initializes the session once per controller lifetime:
// recover stale persisted state, resolve the current provider session
// and profile under the bootstrap timeout, then subscribe to auth-state
// changes. Subsequent calls are no-ops.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.bootstrapOnce.Do(func() { c.bootstrap(ctx) })
}

func (c *Controller) bootstrap(ctx context.Context) {
	// Recovery must precede the first mutation: every store mutation
	// re-serializes the slot, which would overwrite the prior process's
	// state before it was inspected.
	if c.store.RecoverPersisted() {
		c.logger.Warn().Msg("Discarded inconsistent persisted session")
	}

	c.store.SetLoading(true)
	c.store.ClearError()

	// The whole session+profile resolution races the bootstrap timer, so
	// a hung profile fetch cannot hold the loading state past the
	// deadline. The buffered channel lets a late result be abandoned
	// without leaking the goroutine.
	done := make(chan bootstrapResult, 1)
	go func() {
		var r bootstrapResult
		r.sess, r.err = c.gw.GetSession(ctx)
		if r.err == nil && r.sess != nil {
			r.profile, r.err = c.gw.GetUserProfile(ctx, r.sess.UserID)
		}
		done <- r
	}()

	timer := time.NewTimer(c.BootstrapTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		c.finishBootstrap(ctx, r)
	case <-timer.C:
		c.logger.Warn().Dur("timeout", c.BootstrapTimeout).Msg("Session bootstrap timed out")
		if c.alive() {
			c.store.SetLoading(false)
			c.store.SetError(MsgBootstrapTimeout)
		}
	}

	if c.alive() {
		c.store.SetLoading(false)
	}

	c.subscribe()
}

// finishBootstrap reconciles the resolved session and profile into the
// store.
func (c *Controller) finishBootstrap(ctx context.Context, r bootstrapResult) {
	if !c.alive() {
		return
	}

	if r.err != nil {
		c.logger.Error().Err(r.err).Msg("Session bootstrap failed")
		c.store.SetError(MsgInitError)
		c.store.Logout()
		return
	}

	if r.sess == nil {
		c.store.SetUser(nil)
		return
	}

	if r.profile == nil {
		// Valid session with no backing user record is fatal for the
		// session: sign out at the provider and locally.
		c.logger.Error().Str("user_id", r.sess.UserID).Msg("No profile backs the provider session")
		c.store.SetError(MsgProfileMissing)
		if err := c.gw.SignOut(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Forced sign-out failed")
		}
		c.store.Logout()
		return
	}

	c.store.SetUser(r.profile)
}

// subscribe registers for provider-pushed auth-state changes for the
// remaining controller lifetime.
func (c *Controller) subscribe() {
	if !c.alive() {
		return
	}
	sub := c.gw.OnAuthStateChange(func(user *session.User) {
		if !c.alive() {
			return
		}
		// SetUser clears IsLoading in both directions.
		c.store.SetUser(user)
	})

	c.mu.Lock()
	c.sub = sub
	closed := c.closed.Load()
	c.mu.Unlock()

	// Close may have raced the registration.
	if closed {
		sub.Unsubscribe()
	}
}

type signInOutcome struct {
	res *gateway.SignInResult
	err error
}

// Login signs in with the given credentials, racing the gateway call
// against the login timeout. The outcome is returned and mirrored on
// the snapshot; Login never returns a raised error.
func (c *Controller) Login(ctx context.Context, creds Credentials) Result {
	c.store.SetLoading(true)
	c.store.ClearError()
	defer func() {
		if c.alive() {
			c.store.SetLoading(false)
		}
	}()

	done := make(chan signInOutcome, 1)
	go func() {
		res, err := c.gw.SignIn(ctx, creds.Email, creds.Password)
		done <- signInOutcome{res: res, err: err}
	}()

	timer := time.NewTimer(c.LoginTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			msg := loginErrorMessage(o.err)
			c.logger.Warn().Err(o.err).Str("kind", gateway.KindOf(o.err).String()).Msg("Login failed")
			if c.alive() {
				c.store.SetError(msg)
			}
			return Result{Error: msg}
		}
		if c.alive() {
			c.store.SetUser(o.res.User)
		}
		return Result{Success: true}
	case <-timer.C:
		// The sign-in stays in flight but has lost the race; its result
		// is abandoned on the buffered channel.
		c.logger.Warn().Dur("timeout", c.LoginTimeout).Msg("Login timed out")
		if c.alive() {
			c.store.SetError(MsgConnectionTimeout)
		}
		return Result{Error: MsgConnectionTimeout}
	}
}

// loginErrorMessage maps a classified gateway failure to the message
// shown to the user.
func loginErrorMessage(err error) string {
	switch gateway.KindOf(err) {
	case gateway.KindInvalidCredentials:
		return MsgInvalidCredentials
	case gateway.KindTimeout:
		return MsgConnectionTimeout
	case gateway.KindNetwork:
		return MsgNetworkError
	default:
		return MsgAuthError
	}
}

// Logout signs out. The remote revocation is best effort; the local
// session is always reset and the persisted projection cleared, then
// navigation is forced to the login entry point.
func (c *Controller) Logout(ctx context.Context) {
	c.store.SetLoading(true)

	if err := c.gw.SignOut(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Gateway sign-out failed, clearing local session anyway")
	}

	c.store.Logout()
	c.navigate(routes.Login)
}

// RefreshAuth re-resolves the provider session and profile. Used as a
// manual recovery action after a timeout error. An absent session or a
// failed lookup ends in the logged-out state.
func (c *Controller) RefreshAuth(ctx context.Context) {
	c.store.SetLoading(true)
	c.store.ClearError()
	defer func() {
		if c.alive() {
			c.store.SetLoading(false)
		}
	}()

	sess, err := c.gw.GetSession(ctx)
	if !c.alive() {
		return
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("Session refresh failed")
		c.store.SetError(MsgRefreshError)
		c.store.Logout()
		return
	}
	if sess == nil {
		c.store.Logout()
		return
	}

	profile, err := c.gw.GetUserProfile(ctx, sess.UserID)
	if !c.alive() {
		return
	}
	if err != nil || profile == nil {
		c.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("Profile lookup failed during refresh")
		c.store.SetError(MsgRefreshError)
		c.store.Logout()
		return
	}

	c.store.SetUser(profile)
}

// HasPermission reports whether the current user holds the permission.
// No user means no permissions.
func (c *Controller) HasPermission(p authz.Permission) bool {
	u := c.store.Get().User
	if u == nil {
		return false
	}
	return c.perms.Allowed(u.Role, p)
}
