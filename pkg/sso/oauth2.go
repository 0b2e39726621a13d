package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/authgate/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// Google OAuth2 endpoints
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// DefaultProviderTimeout bounds each outbound call to the provider
const DefaultProviderTimeout = 10 * time.Second

const maxUserInfoBytes = 1 << 20

// GoogleScopes are requested on every login
var GoogleScopes = []string{"openid", "email", "profile"}

// GoogleConfig holds the Google OAuth2 client settings.
// Empty endpoint URLs default to Google's.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// GoogleClient implements IdentityProviderClient for Google
type GoogleClient struct {
	oauth2Config *oauth2.Config
	userInfoURL  string
	httpClient   *http.Client
	metrics      *observability.Metrics
}

// NewGoogleClient creates a Google client. Missing credentials are reported
// when a login is attempted, not here. metrics may be nil.
func NewGoogleClient(cfg GoogleConfig, metrics *observability.Metrics) *GoogleClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = GoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = GoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}

	return &GoogleClient{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      GoogleScopes,
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: metrics,
	}
}

// Name returns the provider name
func (c *GoogleClient) Name() string {
	return ProviderGoogle
}

// AuthorizeParams returns the consent screen query parameters bound to state
func (c *GoogleClient) AuthorizeParams(state string) (map[string]string, error) {
	if c.oauth2Config.ClientID == "" {
		return nil, fmt.Errorf("%w: google client id is empty", ErrConfiguration)
	}

	return map[string]string{
		"client_id":     c.oauth2Config.ClientID,
		"redirect_uri":  c.oauth2Config.RedirectURL,
		"response_type": "code",
		"scope":         strings.Join(c.oauth2Config.Scopes, " "),
		"access_type":   "online",
		"prompt":        "select_account",
		"state":         state,
	}, nil
}

// AuthorizeURL encodes AuthorizeParams onto the authorization endpoint
func (c *GoogleClient) AuthorizeURL(state string) (string, error) {
	params, err := c.AuthorizeParams(state)
	if err != nil {
		return "", err
	}

	authURL, err := url.Parse(c.oauth2Config.Endpoint.AuthURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid google auth url: %w", ErrConfiguration, err)
	}
	query := authURL.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// Exchange trades code for a token, then fetches the user's profile with it
func (c *GoogleClient) Exchange(ctx context.Context, code string) (identity *Identity, err error) {
	if c.oauth2Config.ClientID == "" || c.oauth2Config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %w: google client credentials are empty", ErrProvider, ErrConfiguration)
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveProviderRequest(ProviderGoogle, err, time.Since(start))
	}()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange code: %v", ErrProvider, err)
	}

	userInfo, err := c.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	return mapUserInfo(userInfo)
}

func (c *GoogleClient) fetchUserInfo(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return userInfo, nil
}

func mapUserInfo(userInfo map[string]interface{}) (*Identity, error) {
	email := getStringValue(userInfo, "email")
	if email == "" {
		return nil, fmt.Errorf("%w: missing email in user info", ErrProvider)
	}

	// Only a JSON true counts; "true" and 1 do not
	verified, _ := userInfo["email_verified"].(bool)

	return &Identity{
		Provider:      ProviderGoogle,
		Email:         email,
		EmailVerified: verified,
		DisplayName:   optionalString(userInfo, "name"),
		AvatarURL:     optionalString(userInfo, "picture"),
	}, nil
}

func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func optionalString(data map[string]interface{}, key string) *string {
	if str := getStringValue(data, key); str != "" {
		return &str
	}
	return nil
}
