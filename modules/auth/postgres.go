package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oneuni/oneuni-backend/pkg/pg"
)

// dbtx is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the same
// query methods serve both pooled and transactional execution.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage implements Storage on top of a pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostgresStorage wraps the pool in a Storage implementation.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool, db: pool}
}

// RunInTx executes fn inside a transaction. Nested calls reuse the ambient
// transaction instead of opening a second one.
func (s *PostgresStorage) RunInTx(ctx context.Context, fn func(Storage) error) error {
	if _, ok := s.db.(pgx.Tx); ok {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStorage{pool: s.pool, db: tx})
	})
}

const userColumns = `user_id, email, name, password_hash, role, is_active, is_verified, created_at, last_login_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsVerified, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, u *User) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (user_id, email, name, password_hash, role, is_active, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.IsActive, u.IsVerified)
	if err := row.Scan(&u.CreatedAt); err != nil {
		if pg.IsDuplicateKey(err) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *PostgresStorage) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE user_id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET last_login_at = $2 WHERE user_id = $1`, id, at)
	return err
}

func (s *PostgresStorage) SaveRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*RefreshToken, error) {
	rt := RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO user_refresh_tokens (token_id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt)
	if err := row.Scan(&rt.CreatedAt); err != nil {
		return nil, err
	}
	return &rt, nil
}

// FindRefreshTokenByHash locks the row with FOR UPDATE so that two
// concurrent rotations of the same token serialize: the loser re-reads the
// row after the winner commits and sees it revoked.
func (s *PostgresStorage) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var rt RefreshToken
	err := s.db.QueryRow(ctx, `
		SELECT token_id, user_id, token_hash, created_at, expires_at, revoked
		FROM user_refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE`, tokenHash).
		Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.CreatedAt, &rt.ExpiresAt, &rt.Revoked)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

func (s *PostgresStorage) RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE user_refresh_tokens SET revoked = TRUE
		WHERE token_hash = $1 AND NOT revoked`, tokenHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_refresh_tokens SET revoked = TRUE
		WHERE user_id = $1 AND NOT revoked`, userID)
	return err
}

func (s *PostgresStorage) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM user_refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStorage) FindUserByExternalLogin(ctx context.Context, provider, providerKey string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `
		SELECT u.user_id, u.email, u.name, u.password_hash, u.role, u.is_active, u.is_verified, u.created_at, u.last_login_at
		FROM users u
		JOIN user_external_logins el ON el.user_id = u.user_id
		WHERE el.provider = $1 AND el.provider_key = $2`, provider, providerKey))
}

func (s *PostgresStorage) LinkExternalLogin(ctx context.Context, userID uuid.UUID, provider, providerKey, displayName string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_external_logins (provider, provider_key, user_id, display_name)
		VALUES ($1, $2, $3, $4)`,
		provider, providerKey, userID, displayName)
	if err != nil {
		if pg.IsDuplicateKey(err) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

var _ Storage = (*PostgresStorage)(nil)
