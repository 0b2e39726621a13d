package sso

import (
	"context"
	"time"

	"github.com/platinummonkey/authgate/pkg/auth"
)

// ProviderGoogle is the provider name used in routes and rate limit actions
const ProviderGoogle = "google"

// Identity is a verified profile returned by an identity provider
type Identity struct {
	Provider      string
	Email         string
	EmailVerified bool
	DisplayName   *string
	AvatarURL     *string
}

// StatePayload is the content of a verified state token
type StatePayload struct {
	CallbackURL string
	Nonce       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// IdentityProviderClient performs the authorization code flow against one provider
type IdentityProviderClient interface {
	// Name is the provider name used in routes, e.g. "google"
	Name() string
	// AuthorizeURL returns the consent screen URL bound to state
	AuthorizeURL(state string) (string, error)
	// Exchange trades an authorization code for the user's identity
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ProvisionResult is the outcome of a successful login
type ProvisionResult struct {
	Account *auth.Account
	Profile *auth.Profile
	Token   *auth.AccessToken
}
