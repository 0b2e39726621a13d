package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a local user account
type Account struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	CredentialHash string    `json:"-"` // Never expose hash
	CreatedAt      time.Time `json:"created_at"`
}

// Profile represents the display data attached to an account
type Profile struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  *string   `json:"username,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateDetails overwrites the name and avatar fields. Username is left as is.
func (p *Profile) UpdateDetails(firstName, lastName, avatarURL *string) {
	p.FirstName = firstName
	p.LastName = lastName
	p.AvatarURL = avatarURL
}

// AccessToken is an opaque bearer token issued by a TokenService
type AccessToken struct {
	Value     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
