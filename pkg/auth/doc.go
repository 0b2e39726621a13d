// Package auth defines the account model and the collaborators that the SSO
// flow depends on but does not own.
//
// # Overview
//
// Accounts are keyed by email. Every account carries a credential hash, even
// accounts created through single sign-on; those receive a random, unusable
// bcrypt hash so that the shape of the row is the same as a password account.
//
//	account := &auth.Account{
//		ID:             uuid.New(),
//		Email:          "ada@example.com",
//		CredentialHash: hash,
//	}
//
// Each account has at most one Profile:
//
//	profile := &auth.Profile{
//		AccountID: account.ID,
//		Username:  auth.StringPtr("ada"),
//	}
//
// # Collaborators
//
// UnitOfWorkFactory/UnitOfWork: transactional access to the account and profile
// repositories. Repositories report auth.ErrNotFound for missing rows and
// auth.ErrDuplicate when a uniqueness constraint rejects an insert.
//
//	uow, err := factory.Begin(ctx)
//	defer uow.Rollback(ctx)
//	account, err := uow.Users().GetByEmail(ctx, email)
//	...
//	err = uow.Commit(ctx)
//
// TokenService: issues access tokens for an account.
//
//	issuer, err := auth.NewJWTTokenService(auth.JWTConfig{
//		Secret: []byte(secret),
//		TTL:    time.Hour,
//		Issuer: "authgate",
//	})
//	token, err := issuer.CreateAccessToken(ctx, account.ID)
//
// # Related Packages
//
//   - pkg/sso: the login flow that provisions accounts
//   - pkg/storage/postgres: SQL implementation of UnitOfWorkFactory
package auth
