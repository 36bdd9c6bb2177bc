package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/oneuni/oneuni-backend/core"
)

// csrfSafeMethods never mutate state and skip the double-submit check.
func csrfSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// CSRFMiddleware enforces the double-submit pattern: every state-changing
// request must echo the readable XSRF-TOKEN cookie in the X-CSRF-TOKEN
// header. Paths in exempt are matched exactly and skipped, which covers the
// endpoints a client hits before it has a session.
func CSRFMiddleware(exempt []string) func(http.Handler) http.Handler {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if csrfSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := exemptSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			c, err := r.Cookie(CookieCSRF)
			header := r.Header.Get(HeaderCSRF)
			if err != nil || c.Value == "" || header == "" ||
				subtle.ConstantTimeCompare([]byte(c.Value), []byte(header)) != 1 {
				core.Error(w, r, http.StatusBadRequest, "CSRF_VALIDATION_FAILED", "CSRF token validation failed.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
