package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/employd-dev/employd/internal/session"
)

// BaseModel provides common fields and an auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User is a dashboard user record held by the identity provider
type User struct {
	BaseModel
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	FullName     string `json:"full_name"`
	Role         string `json:"role" gorm:"not null;default:readonly"`
	PasswordHash string `json:"-" gorm:"not null"`
}

// Profile maps the record to the client-side user profile
func (u *User) Profile() *session.User {
	return &session.User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      session.Role(u.Role),
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

// GatewaySession is an issued provider session. Sign-out revokes the row
// so a stolen token stops working before its expiry.
type GatewaySession struct {
	BaseModel
	TokenID   string     `json:"token_id" gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID    string     `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	RevokedAt *time.Time `json:"revoked_at"`
}

// Active reports whether the session is usable at the given time
func (s *GatewaySession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&GatewaySession{},
	)
}
