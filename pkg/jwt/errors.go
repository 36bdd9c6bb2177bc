package jwt

import "errors"

var (
	ErrMissingSigningKey   = errors.New("jwt: missing signing key")
	ErrMissingClaims       = errors.New("jwt: missing claims")
	ErrMalformedToken      = errors.New("jwt: malformed token")
	ErrInvalidSignature    = errors.New("jwt: invalid signature")
	ErrUnexpectedAlgorithm = errors.New("jwt: unexpected signing algorithm")
	ErrInvalidClaims       = errors.New("jwt: invalid claims")
	ErrTokenExpired        = errors.New("jwt: token is expired")
)
