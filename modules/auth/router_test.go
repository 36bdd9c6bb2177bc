package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneuni/oneuni-backend/modules/auth"
	"github.com/oneuni/oneuni-backend/pkg/cookie"
)

func newTestHandler(t *testing.T) (http.Handler, *memStorage) {
	t.Helper()
	store := newMemStorage()
	svc := newTestService(t, store)
	tokens, err := auth.NewTokenCodec("test-signing-secret", "oneuni-test", 15*time.Minute, 10*time.Minute)
	require.NoError(t, err)
	transport := auth.NewTransport(cookie.New(), 15*time.Minute, 7*24*time.Hour, false)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", auth.NewHandler(svc, transport, tokens).Routes())
	})
	return r, store
}

func postJSON(t *testing.T, h http.Handler, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"name":             "Alice",
		"email":            email,
		"password":         "secret123",
		"confirm_password": "secret123",
		"role":             "student",
	}
}

func sessionCookies(t *testing.T, rec *httptest.ResponseRecorder) (access, refresh *http.Cookie) {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case auth.CookieAccessToken:
			access = c
		case auth.CookieRefreshToken:
			refresh = c
		}
	}
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	return access, refresh
}

func TestHandlerRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates account and session cookies", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		rec := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		access, refresh := sessionCookies(t, rec)
		assert.NotEmpty(t, access.Value)
		assert.NotEmpty(t, refresh.Value)
		assert.Contains(t, rec.Body.String(), `"email":"a@example.com"`)
	})

	t.Run("password mismatch", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		body := registerBody("a@example.com")
		body["confirm_password"] = "different"
		rec := postJSON(t, h, "/api/auth/register", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	})

	t.Run("unknown role", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		body := registerBody("a@example.com")
		body["role"] = "superuser"
		rec := postJSON(t, h, "/api/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		require.Equal(t, http.StatusCreated, postJSON(t, h, "/api/auth/register", registerBody("a@example.com")).Code)
		rec := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "USER_ALREADY_EXISTS")
	})
}

func TestHandlerLogin(t *testing.T) {
	t.Parallel()

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))

		rec := postJSON(t, h, "/api/auth/login", map[string]string{"email": "a@example.com", "password": "secret123"})
		require.Equal(t, http.StatusOK, rec.Code)
		sessionCookies(t, rec)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))

		rec := postJSON(t, h, "/api/auth/login", map[string]string{"email": "a@example.com", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
	})
}

func TestHandlerRefresh(t *testing.T) {
	t.Parallel()

	t.Run("rotates cookies", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		_, refresh := sessionCookies(t, reg)

		rec := postJSON(t, h, "/api/auth/refresh", nil, refresh)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		_, rotated := sessionCookies(t, rec)
		assert.NotEqual(t, refresh.Value, rotated.Value)

		// the old cookie is now dead
		rec = postJSON(t, h, "/api/auth/refresh", nil, refresh)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
	})

	t.Run("missing cookie clears session", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		rec := postJSON(t, h, "/api/auth/refresh", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
		assert.NotEmpty(t, rec.Result().Cookies())
	})
}

func TestHandlerLogout(t *testing.T) {
	t.Parallel()

	t.Run("revokes the session and clears cookies", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		access, refresh := sessionCookies(t, reg)

		rec := postJSON(t, h, "/api/auth/logout", nil, access, refresh)
		require.Equal(t, http.StatusOK, rec.Code)
		for _, c := range rec.Result().Cookies() {
			assert.Empty(t, c.Value)
		}

		rec = postJSON(t, h, "/api/auth/refresh", nil, refresh)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("requires an access token", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		_, refresh := sessionCookies(t, reg)

		rec := postJSON(t, h, "/api/auth/logout", nil, refresh)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// the refresh credential is still live
		rec = postJSON(t, h, "/api/auth/refresh", nil, refresh)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandlerMe(t *testing.T) {
	t.Parallel()

	t.Run("authenticated", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		access, _ := sessionCookies(t, reg)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"email":"a@example.com"`)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandlerChangePassword(t *testing.T) {
	t.Parallel()

	t.Run("success forces re-login", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		access, refresh := sessionCookies(t, reg)

		rec := postJSON(t, h, "/api/auth/change-password",
			map[string]string{"current_password": "secret123", "new_password": "newsecret"},
			access, refresh)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// old refresh credential revoked along with everything else
		rec = postJSON(t, h, "/api/auth/refresh", nil, refresh)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = postJSON(t, h, "/api/auth/login", map[string]string{"email": "a@example.com", "password": "newsecret"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong current password", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		access, refresh := sessionCookies(t, reg)

		rec := postJSON(t, h, "/api/auth/change-password",
			map[string]string{"current_password": "wrong", "new_password": "newsecret"},
			access, refresh)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_CURRENT_PASSWORD")
	})

	t.Run("missing refresh cookie", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		reg := postJSON(t, h, "/api/auth/register", registerBody("a@example.com"))
		access, _ := sessionCookies(t, reg)

		rec := postJSON(t, h, "/api/auth/change-password",
			map[string]string{"current_password": "secret123", "new_password": "newsecret"},
			access)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
	})
}

func TestHandlerGoogleFlow(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)

	rec := postJSON(t, h, "/api/auth/google", map[string]string{"code": "auth-code"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			RequiresSignup bool   `json:"requires_signup"`
			TemporaryToken string `json:"temporary_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Data.RequiresSignup)
	require.NotEmpty(t, body.Data.TemporaryToken)

	rec = postJSON(t, h, "/api/auth/google/complete", map[string]string{
		"temporary_token": body.Data.TemporaryToken,
		"role":            "student",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionCookies(t, rec)

	// second login goes straight to a session
	rec = postJSON(t, h, "/api/auth/google", map[string]string{"code": "auth-code"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "temporary_token")
	sessionCookies(t, rec)
}
