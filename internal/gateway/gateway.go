// Package gateway defines the contract with the identity provider and
// an HTTP client implementing it. The provider is a black box to the
// rest of the code: credential checks, session issuance and profile
// lookup all happen behind this interface.
package gateway

import (
	"context"
	"time"

	"github.com/employd-dev/employd/internal/session"
)

// Session describes an issued provider session.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignInResult carries the issued session together with the resolved
// user profile.
type SignInResult struct {
	Session *Session
	User    *session.User
}

// Subscription is a cancellable auth-state-change registration.
type Subscription interface {
	Unsubscribe()
}

// Gateway is the call contract with the identity provider.
//
// GetSession returns nil when no session exists. GetUserProfile returns
// nil when no user record backs the id; both reserve the error return
// for transport and provider failures.
//
// OnAuthStateChange registers a callback invoked whenever the provider
// session changes; the callback receives the resolved profile, or nil
// when the session ended. The registration lasts until Unsubscribe.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*Session, error)
	GetUserProfile(ctx context.Context, userID string) (*session.User, error)
	OnAuthStateChange(fn func(user *session.User)) Subscription
}
