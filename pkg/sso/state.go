package sso

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultStateTTL bounds how long a login may take between start and callback
	DefaultStateTTL = 10 * time.Minute
	nonceBytes      = 32
)

type stateClaims struct {
	CallbackURL string `json:"cb"`
	Nonce       string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateCodec mints and verifies the signed state carried through the
// provider redirect. Nothing is stored server side; a token stays valid until
// it expires, so replay within the TTL is not detected.
type StateCodec struct {
	secret  []byte
	allowed []*url.URL
	now     func() time.Time
}

// NewStateCodec creates a codec signing with secret. Verified callbacks must
// share scheme, host and port with one of allowedPrefixes and start with its path.
func NewStateCodec(secret []byte, allowedPrefixes ...string) (*StateCodec, error) {
	allowed := make([]*url.URL, 0, len(allowedPrefixes))
	for _, prefix := range allowedPrefixes {
		u, err := url.Parse(prefix)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: callback prefix %q must be an absolute URL", ErrConfiguration, prefix)
		}
		allowed = append(allowed, u)
	}

	return &StateCodec{
		secret:  secret,
		allowed: allowed,
		now:     time.Now,
	}, nil
}

// Mint returns a state token for callbackURL. A non-positive ttl means DefaultStateTTL.
func (c *StateCodec) Mint(callbackURL string, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", fmt.Errorf("%w: state secret is empty", ErrConfiguration)
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := c.now()
	claims := stateClaims{
		CallbackURL: callbackURL,
		Nonce:       base64.RawURLEncoding.EncodeToString(nonce),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token and that its callback is allowed
func (c *StateCodec) Verify(token string) (*StatePayload, error) {
	if len(c.secret) == 0 {
		return nil, ErrInvalidState
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.CallbackURL == "" || claims.Nonce == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidState)
	}
	if !c.callbackAllowed(claims.CallbackURL) {
		return nil, ErrInvalidCallback
	}

	payload := &StatePayload{
		CallbackURL: claims.CallbackURL,
		Nonce:       claims.Nonce,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

func (c *StateCodec) callbackAllowed(callback string) bool {
	u, err := url.Parse(callback)
	if err != nil || u.User != nil {
		return false
	}

	for _, prefix := range c.allowed {
		if !strings.EqualFold(u.Scheme, prefix.Scheme) || !strings.EqualFold(u.Host, prefix.Host) {
			continue
		}
		base := strings.TrimSuffix(prefix.Path, "/")
		if base == "" || u.Path == base || strings.HasPrefix(u.Path, base+"/") {
			return true
		}
	}
	return false
}
