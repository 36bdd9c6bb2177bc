package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore persists account records. Lookups return ErrNotFound on a miss;
// CreateUser returns ErrUserAlreadyExists when the email is taken.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RefreshTokenStore persists refresh credentials, keyed by secret hash.
type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*RefreshToken, error)
	// FindRefreshTokenByHash returns the row regardless of revocation or
	// expiry state; callers decide what a dead token means. Inside a
	// transaction the row is locked until commit.
	FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// RevokeRefreshToken marks the token revoked and reports whether a live
	// row was actually flipped.
	RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// ExternalLoginStore maps external identity provider subjects to local users.
type ExternalLoginStore interface {
	FindUserByExternalLogin(ctx context.Context, provider, providerKey string) (*User, error)
	LinkExternalLogin(ctx context.Context, userID uuid.UUID, provider, providerKey, displayName string) error
}

// Storage is the full persistence contract of the auth module. RunInTx runs
// fn against a transactional view of the same storage; returning an error
// rolls everything back.
type Storage interface {
	UserStore
	RefreshTokenStore
	ExternalLoginStore

	RunInTx(ctx context.Context, fn func(Storage) error) error
}
