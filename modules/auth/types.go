package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse-grained user role assigned at registration.
type Role string

const (
	RoleStudent                  Role = "student"
	RoleMentor                   Role = "mentor"
	RoleUniversityRepresentative Role = "university_representative"
	RoleAdmin                    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleUniversityRepresentative, RoleAdmin:
		return true
	}
	return false
}

// User is an account record. PasswordHash is empty for accounts created
// through an external identity provider.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// RefreshToken is a stored refresh credential. TokenHash holds the SHA-256
// digest of the opaque secret; the secret itself is never persisted.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// GoogleIdentity is the verified identity returned by the Google userinfo
// endpoint after a successful authorization-code exchange.
type GoogleIdentity struct {
	SubjectID     string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// Session is the result of a successful authentication: a signed access token
// plus the opaque refresh secret handed to the transport layer. RefreshSecret
// is empty when the operation did not mint a new refresh credential.
type Session struct {
	User          *User
	AccessToken   string
	RefreshSecret string
	ExpiresAt     time.Time
}

// PendingSignup is the outcome of a Google login for an unknown identity.
// The client presents TemporaryToken back on the signup completion call.
type PendingSignup struct {
	TemporaryToken string
	Email          string
	DisplayName    string
	ExpiresAt      time.Time
}
