package session

import "time"

// Role identifies the access level of a dashboard user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleReadonly Role = "readonly"
	RoleAuditor  Role = "auditor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleReadonly, RoleAuditor:
		return true
	}
	return false
}

// User is the profile of an authenticated dashboard user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the current authentication state. User and IsAuthenticated
// always move together: IsAuthenticated is true exactly when User is set.
type Snapshot struct {
	User            *User
	IsLoading       bool
	IsAuthenticated bool
	AuthError       string
}

// Projection is the durable subset of the snapshot saved across restarts.
// IsLoading and AuthError are transient and never persisted.
type Projection struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

// Corrupted reports whether the projection is internally inconsistent.
// A user without the authenticated flag (or the flag without a user)
// means the slot was torn mid-write or tampered with; it must be
// discarded rather than trusted.
func (p Projection) Corrupted() bool {
	return (p.User != nil) != p.IsAuthenticated
}

// ProjectionStore persists the projection in a single named slot.
// Load returns ok=false when no prior session exists; implementations
// treat an unparseable slot the same way.
type ProjectionStore interface {
	Save(p Projection) error
	Load() (Projection, bool, error)
	Clear() error
}
