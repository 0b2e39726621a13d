// Package sso implements browser single sign-on against an OAuth2 identity
// provider with just-in-time account provisioning.
//
// # Flow
//
// GET /sso/{provider}/start mints a signed, self-contained state token bound to
// the frontend callback URL and redirects the browser to the provider's
// consent screen. GET /sso/{provider}/callback verifies the state, exchanges
// the authorization code for the user's profile, provisions the account and
// redirects back to the frontend with the result in the URL fragment:
//
//	https://app.example.com/sso/google/callback#access_token=...&expires_at=2026-01-02T15:04:05Z
//	https://app.example.com/sso/google/callback#error=Email_not_verified
//
// Both routes are rate limited per client address.
//
// # Provisioning
//
// UserProvisioner requires a verified email. The first login creates an
// account with an unusable credential and a profile whose username is the
// email local part; later logins refresh the name and avatar and keep the
// username. Account and profile writes share one unit of work.
//
// # Usage
//
//	states, _ := sso.NewStateCodec(secret, "https://app.example.com")
//	google := sso.NewGoogleClient(sso.GoogleConfig{ClientID: id, ClientSecret: secret, RedirectURL: redirect}, metrics)
//	handlers := sso.NewHandlers(google, states, sso.NewUserProvisioner(units, tokens, logger), limiter, cfg, logger, metrics)
//	handlers.RegisterRoutes(router.PathPrefix("/api/auth").Subrouter())
package sso
