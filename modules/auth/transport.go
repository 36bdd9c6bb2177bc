package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/oneuni/oneuni-backend/pkg/cookie"
)

// Cookie and header names of the session transport.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieCSRF         = "XSRF-TOKEN"
	HeaderCSRF         = "X-CSRF-TOKEN"
)

// Path scoping keeps the refresh credential off every request except the
// rotation endpoint.
const (
	accessCookiePath  = "/api"
	refreshCookiePath = "/api/auth/refresh"
)

// Transport moves session material between the service and the browser:
// HttpOnly cookies for the tokens, a readable cookie for the CSRF pair.
type Transport struct {
	cookies    *cookie.Manager
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
}

// NewTransport builds the cookie transport.
func NewTransport(cookies *cookie.Manager, accessTTL, refreshTTL time.Duration, secure bool) *Transport {
	return &Transport{
		cookies:    cookies,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		secure:     secure,
	}
}

// SetSessionCookies writes the access, refresh and CSRF cookies for the
// session. The refresh cookie is only touched when the session carries a new
// refresh secret. Returns the CSRF token that was paired with the session.
func (t *Transport) SetSessionCookies(w http.ResponseWriter, sess *Session) (string, error) {
	accessMaxAge := int(t.accessTTL.Seconds())
	t.cookies.Set(w, CookieAccessToken, sess.AccessToken,
		cookie.WithPath(accessCookiePath),
		cookie.WithMaxAge(accessMaxAge),
		cookie.WithSecure(t.secure),
	)

	if sess.RefreshSecret != "" {
		t.cookies.Set(w, CookieRefreshToken, sess.RefreshSecret,
			cookie.WithPath(refreshCookiePath),
			cookie.WithMaxAge(int(t.refreshTTL.Seconds())),
			cookie.WithSecure(t.secure),
		)
	}

	csrf, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	t.cookies.Set(w, CookieCSRF, csrf,
		cookie.WithHTTPOnly(false),
		cookie.WithMaxAge(accessMaxAge),
		cookie.WithSecure(t.secure),
	)
	return csrf, nil
}

// ClearSessionCookies expires all three cookies, mirroring the paths they
// were set with so the browser actually drops them.
func (t *Transport) ClearSessionCookies(w http.ResponseWriter) {
	t.cookies.Delete(w, CookieAccessToken, cookie.WithPath(accessCookiePath), cookie.WithSecure(t.secure))
	t.cookies.Delete(w, CookieRefreshToken, cookie.WithPath(refreshCookiePath), cookie.WithSecure(t.secure))
	t.cookies.Delete(w, CookieCSRF, cookie.WithHTTPOnly(false), cookie.WithSecure(t.secure))
}

// AccessToken reads the access token from the request cookie, falling back
// to a bearer Authorization header for non-browser clients.
func (t *Transport) AccessToken(r *http.Request) string {
	if v, err := t.cookies.Get(r, CookieAccessToken); err == nil && v != "" {
		return v
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// RefreshSecret reads the refresh cookie, empty when absent.
func (t *Transport) RefreshSecret(r *http.Request) string {
	v, err := t.cookies.Get(r, CookieRefreshToken)
	if err != nil {
		return ""
	}
	return v
}

func newCSRFToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
