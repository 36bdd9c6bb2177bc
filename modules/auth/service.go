package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oneuni/oneuni-backend/pkg/logger"
)

// Service owns the session lifecycle: credential checks, token issuance,
// refresh rotation and revocation. Every state transition that touches more
// than one row runs inside a single storage transaction.
type Service struct {
	storage    Storage
	tokens     *TokenCodec
	hasher     *PasswordHasher
	provider   IdentityProvider
	refreshTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the session lifecycle service.
func NewService(storage Storage, tokens *TokenCodec, hasher *PasswordHasher, provider IdentityProvider, refreshTTL time.Duration, opts ...ServiceOption) *Service {
	s := &Service{
		storage:    storage,
		tokens:     tokens,
		hasher:     hasher,
		provider:   provider,
		refreshTTL: refreshTTL,
		now:        time.Now,
		log:        logger.NewDiscard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// issueSession mints an access token and a fresh refresh credential for the
// user, persisting only the hash of the refresh secret.
func (s *Service) issueSession(ctx context.Context, st Storage, u *User) (*Session, error) {
	access, exp, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	if _, err := st.SaveRefreshToken(ctx, u.ID, HashRefreshSecret(secret), s.now().Add(s.refreshTTL)); err != nil {
		return nil, errors.Join(ErrRefreshTokenSaveFailed, err)
	}
	return &Session{
		User:          u,
		AccessToken:   access,
		RefreshSecret: secret,
		ExpiresAt:     exp,
	}, nil
}

// Register creates a password account and opens its first session. The
// duplicate-email race is closed by the unique index on users.email, not by
// the preliminary lookup.
func (s *Service) Register(ctx context.Context, email, name, password string, role Role) (*Session, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.Join(ErrUserRegistrationFailed, err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	var sess *Session
	err = s.storage.RunInTx(ctx, func(st Storage) error {
		if err := st.CreateUser(ctx, u); err != nil {
			if errors.Is(err, ErrUserAlreadyExists) {
				return err
			}
			return errors.Join(ErrUserRegistrationFailed, err)
		}
		sess, err = s.issueSession(ctx, st, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", logger.UserID(u.ID.String()), slog.String("role", string(role)))
	return sess, nil
}

// Login verifies the password and opens a session. Unknown emails, disabled
// accounts and wrong passwords all collapse into INVALID_CREDENTIALS so the
// response does not leak which one it was.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Join(ErrInvalidCredentials, err)
	}
	if !u.IsActive || !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	var sess *Session
	err = s.storage.RunInTx(ctx, func(st Storage) error {
		if err := st.UpdateLastLogin(ctx, u.ID, s.now()); err != nil {
			return errors.Join(ErrTokenGenerationFailed, err)
		}
		sess, err = s.issueSession(ctx, st, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Refresh rotates the refresh credential: the presented secret is revoked
// and a new session minted in one transaction. A revoked, expired or unknown
// secret fails closed with INVALID_REFRESH_TOKEN and never half-rotates.
func (s *Service) Refresh(ctx context.Context, refreshSecret string) (*Session, error) {
	if refreshSecret == "" {
		return nil, ErrInvalidRefreshToken
	}
	hash := HashRefreshSecret(refreshSecret)

	var sess *Session
	err := s.storage.RunInTx(ctx, func(st Storage) error {
		rt, err := st.FindRefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return errors.Join(ErrTokenRefreshFailed, err)
		}
		if rt.Revoked || !rt.ExpiresAt.After(s.now()) {
			return ErrInvalidRefreshToken
		}

		u, err := st.GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrUserNotFound
			}
			return errors.Join(ErrTokenRefreshFailed, err)
		}
		if !u.IsActive {
			return ErrInvalidRefreshToken
		}

		if _, err := st.RevokeRefreshToken(ctx, hash); err != nil {
			return errors.Join(ErrTokenRefreshFailed, err)
		}
		sess, err = s.issueSession(ctx, st, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout revokes the presented refresh credential. It is idempotent: an
// unknown or already-revoked secret is not an error, and storage failures
// are logged rather than surfaced because the transport has already cleared
// the client's cookies.
func (s *Service) Logout(ctx context.Context, refreshSecret string) {
	if refreshSecret == "" {
		return
	}
	if _, err := s.storage.RevokeRefreshToken(ctx, HashRefreshSecret(refreshSecret)); err != nil {
		s.log.ErrorContext(ctx, "failed to revoke refresh token on logout", logger.Error(err))
	}
}

// ChangePassword verifies the current password and a live refresh credential
// belonging to the same user, then swaps the hash and revokes every
// outstanding refresh token. The caller must log in again afterwards.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword, refreshSecret string) error {
	if refreshSecret == "" {
		return ErrInvalidRefreshToken
	}
	hash := HashRefreshSecret(refreshSecret)

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return errors.Join(ErrPasswordChangeFailed, err)
	}

	return s.storage.RunInTx(ctx, func(st Storage) error {
		rt, err := st.FindRefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return errors.Join(ErrPasswordChangeFailed, err)
		}
		if rt.Revoked || !rt.ExpiresAt.After(s.now()) || rt.UserID != userID {
			return ErrInvalidRefreshToken
		}

		u, err := st.GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrUserNotFound
			}
			return errors.Join(ErrPasswordChangeFailed, err)
		}
		if !s.hasher.Verify(currentPassword, u.PasswordHash) {
			return ErrInvalidCurrentPassword
		}

		if err := st.UpdatePasswordHash(ctx, userID, newHash); err != nil {
			return errors.Join(ErrPasswordChangeFailed, err)
		}
		if err := st.RevokeAllRefreshTokens(ctx, userID); err != nil {
			return errors.Join(ErrPasswordChangeFailed, err)
		}
		return nil
	})
}

// GoogleAuthenticate exchanges the authorization code and either opens a
// session for an already-linked identity or returns a PendingSignup holding
// the temporary identity token for the completion phase.
func (s *Service) GoogleAuthenticate(ctx context.Context, code string) (*Session, *PendingSignup, error) {
	identity, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.storage.FindUserByExternalLogin(ctx, ProviderGoogle, identity.SubjectID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, nil, errors.Join(ErrTokenGenerationFailed, err)
		}
		pending, err := s.tempGoogleSignUp(*identity)
		if err != nil {
			return nil, nil, err
		}
		return nil, pending, nil
	}
	if !u.IsActive {
		return nil, nil, ErrInvalidCredentials
	}

	var sess *Session
	err = s.storage.RunInTx(ctx, func(st Storage) error {
		if err := st.UpdateLastLogin(ctx, u.ID, s.now()); err != nil {
			return errors.Join(ErrTokenGenerationFailed, err)
		}
		sess, err = s.issueSession(ctx, st, u)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, nil, nil
}

// tempGoogleSignUp mints the temporary identity token for an identity with
// no local account. No state is persisted until the completion call.
func (s *Service) tempGoogleSignUp(identity GoogleIdentity) (*PendingSignup, error) {
	code := uuid.NewString()
	token, exp, err := s.tokens.IssueTemporaryIdentityToken(code, identity)
	if err != nil {
		return nil, err
	}
	return &PendingSignup{
		TemporaryToken: token,
		Email:          identity.Email,
		DisplayName:    identity.DisplayName,
		ExpiresAt:      exp,
	}, nil
}

// CompleteGoogleSignup finishes the two-phase signup: the temporary token is
// verified, the identity re-checked against existing links, and the account,
// external login link and first session created in one transaction.
func (s *Service) CompleteGoogleSignup(ctx context.Context, temporaryToken string, role Role) (*Session, error) {
	claims, err := s.tokens.VerifyTemporaryIdentityToken(temporaryToken)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:         uuid.New(),
		Email:      claims.Email,
		Name:       claims.DisplayName,
		Role:       role,
		IsActive:   true,
		IsVerified: claims.EmailVerified,
	}

	var sess *Session
	err = s.storage.RunInTx(ctx, func(st Storage) error {
		if _, err := st.FindUserByExternalLogin(ctx, ProviderGoogle, claims.GoogleSubject); err == nil {
			return ErrUserAlreadyExists
		} else if !errors.Is(err, ErrNotFound) {
			return errors.Join(ErrUserRegistrationFailed, err)
		}

		if err := st.CreateUser(ctx, u); err != nil {
			if errors.Is(err, ErrUserAlreadyExists) {
				return err
			}
			return errors.Join(ErrUserRegistrationFailed, err)
		}
		if err := st.LinkExternalLogin(ctx, u.ID, ProviderGoogle, claims.GoogleSubject, claims.DisplayName); err != nil {
			if errors.Is(err, ErrUserAlreadyExists) {
				return err
			}
			return errors.Join(ErrUserRegistrationFailed, err)
		}
		sess, err = s.issueSession(ctx, st, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "google signup completed", logger.UserID(u.ID.String()), slog.String("role", string(role)))
	return sess, nil
}

// User loads the account behind verified access claims, for the profile
// endpoint.
func (s *Service) User(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.storage.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// DeleteExpiredTokens removes refresh rows whose expiry has passed. The
// sweeper calls this off the request path.
func (s *Service) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	return s.storage.DeleteExpiredRefreshTokens(ctx, s.now())
}
