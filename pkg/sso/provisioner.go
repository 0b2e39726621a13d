package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/authgate/pkg/auth"
	"github.com/sirupsen/logrus"
)

// Validation messages surfaced in the callback fragment
const (
	MsgMissingEmail     = "Missing email"
	MsgEmailNotVerified = "Email not verified"
)

// UserProvisioner handles JIT (Just-In-Time) account provisioning
type UserProvisioner struct {
	units  auth.UnitOfWorkFactory
	tokens auth.TokenService
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewUserProvisioner creates a new user provisioner
func NewUserProvisioner(units auth.UnitOfWorkFactory, tokens auth.TokenService, logger logrus.FieldLogger) *UserProvisioner {
	return &UserProvisioner{
		units:  units,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Provision finds or creates the account and profile for identity in one
// transaction, then issues an access token for the account.
func (p *UserProvisioner) Provision(ctx context.Context, identity *Identity) (*ProvisionResult, error) {
	if identity == nil || identity.Email == "" {
		return nil, newValidationError(MsgMissingEmail)
	}
	if !identity.EmailVerified {
		return nil, newValidationError(MsgEmailNotVerified)
	}

	account, profile, err := p.provisionOnce(ctx, identity)
	if errors.Is(err, auth.ErrDuplicate) {
		// A concurrent login for the same email committed first; its rows are visible now
		p.logger.WithField("provider", identity.Provider).Debug("Provisioning raced a concurrent login, retrying")
		account, profile, err = p.provisionOnce(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	token, err := p.tokens.CreateAccessToken(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &ProvisionResult{
		Account: account,
		Profile: profile,
		Token:   token,
	}, nil
}

func (p *UserProvisioner) provisionOnce(ctx context.Context, identity *Identity) (*auth.Account, *auth.Profile, error) {
	uow, err := p.units.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := uow.Rollback(ctx); rbErr != nil {
				p.logger.WithError(rbErr).Warn("Failed to roll back provisioning")
			}
		}
	}()

	account, err := p.findOrCreateAccount(ctx, uow, identity.Email)
	if err != nil {
		return nil, nil, err
	}

	profile, err := p.upsertProfile(ctx, uow, account, identity)
	if err != nil {
		return nil, nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit provisioning: %w", err)
	}
	committed = true

	return account, profile, nil
}

func (p *UserProvisioner) findOrCreateAccount(ctx context.Context, uow auth.UnitOfWork, email string) (*auth.Account, error) {
	account, err := uow.Users().GetByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	hash, err := auth.NewUnusableCredentialHash()
	if err != nil {
		return nil, err
	}

	account = &auth.Account{
		ID:             uuid.New(),
		Email:          email,
		CredentialHash: hash,
		CreatedAt:      p.now().UTC(),
	}
	if err := uow.Users().Add(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

func (p *UserProvisioner) upsertProfile(ctx context.Context, uow auth.UnitOfWork, account *auth.Account, identity *Identity) (*auth.Profile, error) {
	firstName, lastName := splitDisplayName(identity.DisplayName)

	profile, err := uow.Profiles().GetByUserID(ctx, account.ID)
	switch {
	case err == nil:
		profile.UpdateDetails(firstName, lastName, identity.AvatarURL)
		profile.UpdatedAt = p.now().UTC()
		if err := uow.Profiles().Update(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
		return profile, nil

	case errors.Is(err, auth.ErrNotFound):
		profile = &auth.Profile{
			AccountID: account.ID,
			Username:  auth.StringPtr(usernameFromEmail(identity.Email)),
			FirstName: firstName,
			LastName:  lastName,
			AvatarURL: identity.AvatarURL,
			UpdatedAt: p.now().UTC(),
		}
		if err := uow.Profiles().Add(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		return profile, nil

	default:
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
}

// splitDisplayName takes the first whitespace-separated token as the first
// name and joins the rest with single spaces as the last name.
func splitDisplayName(displayName *string) (firstName, lastName *string) {
	if displayName == nil {
		return nil, nil
	}
	parts := strings.Fields(*displayName)
	if len(parts) == 0 {
		return nil, nil
	}
	return auth.StringPtr(parts[0]), auth.StringPtr(strings.Join(parts[1:], " "))
}

// usernameFromEmail returns the local part of email, or all of it without an "@"
func usernameFromEmail(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok {
		return local
	}
	return email
}
