package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by repositories when no row matches
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository provides account persistence inside a unit of work
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Add(ctx context.Context, account *Account) error
}

// ProfileRepository provides profile persistence inside a unit of work
type ProfileRepository interface {
	GetByUserID(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	Add(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error
}

// UnitOfWork groups repository operations into one atomic transaction.
// Rollback after a successful Commit is a no-op.
type UnitOfWork interface {
	Users() UserRepository
	Profiles() ProfileRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory starts units of work
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// TokenService issues access tokens for accounts
type TokenService interface {
	CreateAccessToken(ctx context.Context, accountID uuid.UUID) (*AccessToken, error)
}
