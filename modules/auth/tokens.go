package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oneuni/oneuni-backend/pkg/jwt"
)

// AccessClaims is the payload of a signed access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// TemporaryIdentityClaims carries a verified external identity between the
// two phases of the Google signup flow. Code correlates the completion call
// with the exchange that produced the token.
type TemporaryIdentityClaims struct {
	jwt.RegisteredClaims
	Code          string `json:"code"`
	GoogleSubject string `json:"gsub"`
	Email         string `json:"email"`
	DisplayName   string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// TokenCodec issues and verifies the module's signed tokens.
type TokenCodec struct {
	codec     *jwt.Codec
	issuer    string
	accessTTL time.Duration
	tempTTL   time.Duration
	now       func() time.Time
}

// TokenCodecOption configures optional TokenCodec collaborators.
type TokenCodecOption func(*TokenCodec)

// WithTokenClock overrides the time source used to stamp issue and expiry
// claims. Used by tests.
func WithTokenClock(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec from the shared signing secret. An empty
// secret is a startup error, not something to fall back from.
func NewTokenCodec(secret, issuer string, accessTTL, tempTTL time.Duration, opts ...TokenCodecOption) (*TokenCodec, error) {
	codec, err := jwt.New([]byte(secret))
	if err != nil {
		return nil, err
	}
	c := &TokenCodec{
		codec:     codec,
		issuer:    issuer,
		accessTTL: accessTTL,
		tempTTL:   tempTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// IssueAccessToken signs an access token for the user.
func (c *TokenCodec) IssueAccessToken(u *User) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.accessTTL)
	token, err := c.codec.Sign(AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    c.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
		Email: u.Email,
		Role:  u.Role,
	})
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenGenerationFailed, err)
	}
	return token, exp, nil
}

// VerifyAccessToken parses and validates an access token.
func (c *TokenCodec) VerifyAccessToken(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := c.codec.Verify(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}
	return &claims, nil
}

// IssueTemporaryIdentityToken signs a short-lived token binding the Google
// identity to the correlation code of the current signup attempt.
func (c *TokenCodec) IssueTemporaryIdentityToken(code string, id GoogleIdentity) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.tempTTL)
	token, err := c.codec.Sign(TemporaryIdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			Issuer:    c.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
		Code:          code,
		GoogleSubject: id.SubjectID,
		Email:         id.Email,
		DisplayName:   id.DisplayName,
		EmailVerified: id.EmailVerified,
	})
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenGenerationFailed, err)
	}
	return token, exp, nil
}

// VerifyTemporaryIdentityToken validates a temporary identity token and
// distinguishes expiry from every other failure so the client can restart
// the flow with the right message.
func (c *TokenCodec) VerifyTemporaryIdentityToken(token string) (*TemporaryIdentityClaims, error) {
	var claims TemporaryIdentityClaims
	if err := c.codec.Verify(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrInvalidTemporaryToken, err)
	}
	if claims.GoogleSubject == "" || claims.Email == "" {
		return nil, ErrInvalidTemporaryToken
	}
	return &claims, nil
}

// NewRefreshSecret returns a fresh opaque refresh secret: 32 random bytes,
// hex encoded. The secret is what the client holds; only its hash is stored.
func NewRefreshSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGenerationFailed, err)
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshSecret returns the hex-encoded SHA-256 digest of the secret.
// This is the only form in which refresh credentials touch storage.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
