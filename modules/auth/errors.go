package auth

import "errors"

// Error codes returned by the auth module. The message of each sentinel is a
// stable machine-readable code: HTTP handlers map codes to status responses
// and API clients switch on them, so the strings must never change.
var (
	ErrUserAlreadyExists      = errors.New("USER_ALREADY_EXISTS")
	ErrUserRegistrationFailed = errors.New("USER_REGISTRATION_FAILED")
	ErrInvalidCredentials     = errors.New("INVALID_CREDENTIALS")
	ErrTokenGenerationFailed  = errors.New("TOKEN_GENERATION_FAILED")
	ErrRefreshTokenSaveFailed = errors.New("REFRESH_TOKEN_SAVE_FAILED")
	ErrInvalidRefreshToken    = errors.New("INVALID_REFRESH_TOKEN")
	ErrTokenRefreshFailed     = errors.New("TOKEN_REFRESH_FAILED")
	ErrInvalidCurrentPassword = errors.New("INVALID_CURRENT_PASSWORD")
	ErrPasswordChangeFailed   = errors.New("PASSWORD_CHANGE_FAILED")
	ErrInvalidTemporaryToken  = errors.New("INVALID_TEMPORARY_TOKEN")
	ErrTokenExpired           = errors.New("TOKEN_EXPIRED")
	ErrUserNotFound           = errors.New("USER_NOT_FOUND")
)

// ErrNotFound is the storage-level miss sentinel. It never crosses the module
// boundary: service methods translate it into one of the codes above.
var ErrNotFound = errors.New("auth: not found")
