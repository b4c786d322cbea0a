// Package guard decides what a protected route shows for a given
// session snapshot. Evaluate is a pure function; rendering and HTTP
// mapping happen in the callers.
package guard

import (
	"github.com/employd-dev/employd/internal/authz"
	"github.com/employd-dev/employd/internal/routes"
	"github.com/employd-dev/employd/internal/session"
)

// Outcome is the guard's verdict for a protected route.
type Outcome int

const (
	// Allow renders the protected content.
	Allow Outcome = iota
	// ShowLoading renders the loading state while a session-affecting
	// operation is in flight.
	ShowLoading
	// ShowError renders a dedicated error state with retry and login
	// actions.
	ShowError
	// RedirectToLogin sends the visitor to the login entry point,
	// carrying the originating location.
	RedirectToLogin
	// DenyRole renders access denied: the user's role does not match the
	// required one.
	DenyRole
	// DenyPermission renders insufficient permissions.
	DenyPermission
)

// String returns a short name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case ShowLoading:
		return "loading"
	case ShowError:
		return "error"
	case RedirectToLogin:
		return "redirect_to_login"
	case DenyRole:
		return "deny_role"
	case DenyPermission:
		return "deny_permission"
	default:
		return "unknown"
	}
}

// Requirement constrains a protected route beyond plain authentication.
// Zero values mean unconstrained.
type Requirement struct {
	RequiredRole       session.Role
	RequiredPermission authz.Permission
}

// Decision is the evaluated verdict plus everything the rendering layer
// needs to act on it.
type Decision struct {
	Outcome Outcome
	// Message carries the snapshot's auth error for the loading and
	// error states, and the denial explanation otherwise.
	Message string
	// RedirectTo is the target path for RedirectToLogin.
	RedirectTo string
	// From is the originating location carried through the login
	// redirect, so the visitor returns there after success.
	From string
}

// timeoutMessages are the errors the controller publishes when an
// advisory timer fires. A timed-out bootstrap redirects to login rather
// than showing the error page: retrying from the login form is the
// recovery path.
var timeoutMessages = map[string]bool{
	"authentication timeout": true,
	"connection timeout":     true,
}

// Evaluate decides what to show for the snapshot under the requirement.
// hasPermission resolves permission checks for the current user; a nil
// func denies every permission-constrained route. from is the location
// being visited.
//
// Precedence: loading, then authentication, then role, then permission.
func Evaluate(snap session.Snapshot, req Requirement, hasPermission func(authz.Permission) bool, from string) Decision {
	if snap.IsLoading {
		return Decision{Outcome: ShowLoading, Message: snap.AuthError}
	}

	if !snap.IsAuthenticated || snap.User == nil {
		if snap.AuthError != "" && !timeoutMessages[snap.AuthError] {
			return Decision{Outcome: ShowError, Message: snap.AuthError}
		}
		return Decision{
			Outcome:    RedirectToLogin,
			RedirectTo: routes.Login,
			From:       from,
		}
	}

	if req.RequiredRole != "" && snap.User.Role != req.RequiredRole {
		return Decision{
			Outcome: DenyRole,
			Message: "access denied: role " + string(req.RequiredRole) + " required",
		}
	}

	if req.RequiredPermission != "" {
		if hasPermission == nil || !hasPermission(req.RequiredPermission) {
			return Decision{
				Outcome: DenyPermission,
				Message: "insufficient permissions: " + string(req.RequiredPermission) + " required",
			}
		}
	}

	return Decision{Outcome: Allow}
}
