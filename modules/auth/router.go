package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oneuni/oneuni-backend/core"
	"github.com/oneuni/oneuni-backend/pkg/logger"
)

const minPasswordLength = 6

// Handler exposes the session lifecycle over HTTP.
type Handler struct {
	svc       *Service
	transport *Transport
	tokens    *TokenCodec
	limit     func(http.Handler) http.Handler
	log       *slog.Logger
}

// HandlerOption configures optional Handler collaborators.
type HandlerOption func(*Handler)

// WithRateLimiter applies the middleware to the credential-guessing targets
// (register and login).
func WithRateLimiter(mw func(http.Handler) http.Handler) HandlerOption {
	return func(h *Handler) { h.limit = mw }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHandler wires the HTTP handler for the auth module.
func NewHandler(svc *Service, transport *Transport, tokens *TokenCodec, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:       svc,
		transport: transport,
		tokens:    tokens,
		limit:     func(next http.Handler) http.Handler { return next },
		log:       logger.NewDiscard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router mounted under /api/auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.limit).Post("/register", h.register)
	r.With(h.limit).Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	r.Post("/google", h.googleLogin)
	r.Post("/google/complete", h.completeGoogleSignup)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.tokens, h.transport))
		r.Get("/me", h.me)
		r.Post("/logout", h.logout)
		r.Post("/change-password", h.changePassword)
	})

	return r
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	IsVerified  bool       `json:"is_verified"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func newUserResponse(u *User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// writeSession sets the session cookies and writes the session body.
func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, sess *Session) {
	if _, err := h.transport.SetSessionCookies(w, sess); err != nil {
		h.log.ErrorContext(r.Context(), "failed to set session cookies", logger.Error(err))
		core.Error(w, r, http.StatusInternalServerError, ErrTokenGenerationFailed.Error(), "Failed to establish session.")
		return
	}
	core.JSON(w, status, sessionResponse{User: newUserResponse(sess.User), ExpiresAt: sess.ExpiresAt})
}

// statusMappings orders the error-to-status table. First match wins.
var statusMappings = []struct {
	err    error
	status int
}{
	{ErrUserAlreadyExists, http.StatusConflict},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrInvalidRefreshToken, http.StatusUnauthorized},
	{ErrTokenExpired, http.StatusUnauthorized},
	{ErrInvalidTemporaryToken, http.StatusUnauthorized},
	{ErrInvalidCurrentPassword, http.StatusBadRequest},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrUserRegistrationFailed, http.StatusInternalServerError},
	{ErrTokenGenerationFailed, http.StatusInternalServerError},
	{ErrRefreshTokenSaveFailed, http.StatusInternalServerError},
	{ErrTokenRefreshFailed, http.StatusInternalServerError},
	{ErrPasswordChangeFailed, http.StatusInternalServerError},
}

// serviceError maps a service error onto its HTTP status and stable code.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrOAuthExchangeFailed) || errors.Is(err, ErrOAuthUserinfoFailed) {
		core.Error(w, r, http.StatusUnauthorized, ErrInvalidCredentials.Error(), "Google authentication failed.")
		return
	}
	for _, m := range statusMappings {
		if errors.Is(err, m.err) {
			core.Error(w, r, m.status, m.err.Error(), http.StatusText(m.status))
			return
		}
	}
	h.log.ErrorContext(r.Context(), "unmapped auth error", logger.Error(err))
	core.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong.")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		Role            Role   `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	switch {
	case len(req.Name) < 2:
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Name must be at least 2 characters.")
		return
	case !strings.Contains(req.Email, "@"):
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "A valid email address is required.")
		return
	case len(req.Password) < minPasswordLength:
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Password must be at least 6 characters.")
		return
	case req.Password != req.ConfirmPassword:
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Passwords do not match.")
		return
	case !req.Role.Valid():
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Unknown role.")
		return
	}

	sess, err := h.svc.Register(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusCreated, sess)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Email and password are required.")
		return
	}

	sess, err := h.svc.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusOK, sess)
}

// refresh rotates the session. Every failure path clears the cookies so a
// browser left with a dead refresh token cannot retry forever.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	secret := h.transport.RefreshSecret(r)
	if secret == "" {
		h.transport.ClearSessionCookies(w)
		core.Error(w, r, http.StatusUnauthorized, ErrInvalidRefreshToken.Error(), "Refresh token not provided.")
		return
	}

	sess, err := h.svc.Refresh(r.Context(), secret)
	if err != nil {
		h.transport.ClearSessionCookies(w)
		h.serviceError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusOK, sess)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	secret := h.transport.RefreshSecret(r)
	h.transport.ClearSessionCookies(w)
	h.svc.Logout(r.Context(), secret)
	core.JSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		core.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
		return
	}
	u, err := h.svc.User(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, newUserResponse(u))
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		core.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil ||
		len(req.CurrentPassword) < minPasswordLength || len(req.NewPassword) < minPasswordLength {
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Current and new password are required.")
		return
	}

	// The refresh credential rides in its path-scoped cookie only on the
	// rotation endpoint, so here the client echoes it via the request cookie
	// header directly.
	secret := ""
	if c, err := r.Cookie(CookieRefreshToken); err == nil {
		secret = c.Value
	}

	if err := h.svc.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword, secret); err != nil {
		h.serviceError(w, r, err)
		return
	}

	// All refresh tokens are revoked now; drop the session cookies so the
	// client re-authenticates.
	h.transport.ClearSessionCookies(w)
	core.JSON(w, http.StatusOK, map[string]string{"message": "Password changed. Please log in again."})
}

func (h *Handler) googleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Authorization code is required.")
		return
	}

	sess, pending, err := h.svc.GoogleAuthenticate(r.Context(), req.Code)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	if pending != nil {
		core.JSON(w, http.StatusOK, map[string]any{
			"requires_signup": true,
			"temporary_token": pending.TemporaryToken,
			"email":           pending.Email,
			"name":            pending.DisplayName,
			"expires_at":      pending.ExpiresAt,
		})
		return
	}
	h.writeSession(w, r, http.StatusOK, sess)
}

func (h *Handler) completeGoogleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemporaryToken string `json:"temporary_token"`
		Role           Role   `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil || req.TemporaryToken == "" {
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Temporary token is required.")
		return
	}
	if !req.Role.Valid() {
		core.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Unknown role.")
		return
	}

	sess, err := h.svc.CompleteGoogleSignup(r.Context(), req.TemporaryToken, req.Role)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusCreated, sess)
}
