package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ProviderGoogle is the provider key under which Google identities are linked.
const ProviderGoogle = "google"

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var (
	ErrOAuthExchangeFailed = errors.New("auth: oauth code exchange failed")
	ErrOAuthUserinfoFailed = errors.New("auth: oauth userinfo fetch failed")
)

// IdentityProvider turns an authorization code into a verified external
// identity. Implementations talk to the provider; the service never does.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*GoogleIdentity, error)
}

// GoogleProvider implements IdentityProvider against Google's OAuth2 and
// userinfo endpoints.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userinfoURL string
}

// NewGoogleProvider builds a provider from the registered OAuth client.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
	}
}

// AuthURL returns the consent page URL for the given anti-forgery state.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode redeems the authorization code and fetches the user's profile.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*GoogleIdentity, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Join(ErrOAuthExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, errors.Join(ErrOAuthUserinfoFailed, err)
	}
	resp, err := p.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, errors.Join(ErrOAuthUserinfoFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrOAuthUserinfoFailed, fmt.Errorf("userinfo status %d", resp.StatusCode))
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Join(ErrOAuthUserinfoFailed, err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, ErrOAuthUserinfoFailed
	}

	return &GoogleIdentity{
		SubjectID:     info.Sub,
		Email:         info.Email,
		DisplayName:   info.Name,
		EmailVerified: info.EmailVerified,
	}, nil
}
