package auth

import "time"

// Config carries the auth module settings loaded from the environment.
type Config struct {
	JWTSecret    string        `env:"JWT_SECRET,required"`
	JWTIssuer    string        `env:"JWT_ISSUER" envDefault:"oneuni"`
	AccessTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	TempTTL      time.Duration `env:"TEMP_TOKEN_TTL" envDefault:"10m"`
	SweepEvery   time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`

	// CSRFExemptPaths are matched exactly against the request path; they
	// cover the endpoints a client reaches before it holds a CSRF cookie.
	CSRFExemptPaths []string `env:"CSRF_EXEMPT_PATHS" envDefault:"/api/auth/register,/api/auth/login,/api/auth/refresh,/api/auth/google,/api/auth/google/complete"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}
