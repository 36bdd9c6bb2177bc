package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Header values fixed for this codec. Only HMAC-SHA256 is accepted on
// verification to rule out algorithm confusion.
const (
	headerType      = "JWT"
	headerAlgorithm = "HS256"
)

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// RegisteredClaims carries the RFC 7519 registered claims used by this
// service. Temporal fields are Unix timestamps; zero values are treated as
// unset and skipped during validation.
type RegisteredClaims struct {
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid checks the temporal claims against the current time.
func (c RegisteredClaims) Valid() error {
	if c.ExpiresAt > 0 && time.Now().Unix() > c.ExpiresAt {
		return ErrTokenExpired
	}
	return nil
}

// Codec signs and verifies compact HS256 tokens with a symmetric key.
// The key lives only in memory; an absent key is a configuration error
// surfaced at construction, never per request.
type Codec struct {
	signingKey []byte
}

// New returns a Codec for the given signing key. The key should be at
// least 32 bytes for HMAC-SHA256.
func New(signingKey []byte) (*Codec, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &Codec{signingKey: signingKey}, nil
}

// Sign serializes claims and returns the signed compact token.
func (c *Codec) Sign(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}

	headerJSON, err := json.Marshal(header{Type: headerType, Algorithm: headerAlgorithm})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payload := encodeSegment(headerJSON) + "." + encodeSegment(claimsJSON)
	return payload + "." + c.sign(payload), nil
}

// Verify checks the signature, algorithm and temporal claims of token and
// unmarshals the claim set into claims. Temporal validation runs when the
// claims type implements `Valid() error`.
func (c *Codec) Verify(token string, claims any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}

	payload := parts[0] + "." + parts[1]
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(c.sign(payload))) != 1 {
		return ErrInvalidSignature
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return ErrMalformedToken
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return ErrMalformedToken
	}
	if h.Algorithm != headerAlgorithm {
		return ErrUnexpectedAlgorithm
	}

	claimsJSON, err := decodeSegment(parts[1])
	if err != nil {
		return ErrMalformedToken
	}
	if err := json.Unmarshal(claimsJSON, claims); err != nil {
		return ErrInvalidClaims
	}

	if v, ok := claims.(interface{ Valid() error }); ok {
		return v.Valid()
	}
	return nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.signingKey)
	mac.Write([]byte(payload))
	return encodeSegment(mac.Sum(nil))
}

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
