package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SecretLength is the number of random bytes behind an unusable credential (256 bits)
	SecretLength = 32
	// DefaultAccessTTL is used when JWTConfig.TTL is unset
	DefaultAccessTTL = time.Hour
)

// RandomSecret returns SecretLength random bytes encoded as base64url without padding
func RandomSecret() (string, error) {
	randomBytes := make([]byte, SecretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// NewUnusableCredentialHash returns a bcrypt hash of a random secret that is
// discarded immediately, so no password can ever match it.
func NewUnusableCredentialHash() (string, error) {
	secret, err := RandomSecret()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// JWTConfig configures JWTTokenService
type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// AccessClaims are the claims carried by access tokens
type AccessClaims struct {
	jwt.RegisteredClaims
}

// JWTTokenService issues HS256 access tokens
type JWTTokenService struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTTokenService creates a token service. The secret is required.
func NewJWTTokenService(cfg JWTConfig) (*JWTTokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAccessTTL
	}

	return &JWTTokenService{
		config: cfg,
		now:    time.Now,
	}, nil
}

// CreateAccessToken signs a token whose subject is the account ID
func (s *JWTTokenService) CreateAccessToken(ctx context.Context, accountID uuid.UUID) (*AccessToken, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &AccessToken{
		Value:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParseAccessToken validates a token issued by this service
func (s *JWTTokenService) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	return claims, nil
}
