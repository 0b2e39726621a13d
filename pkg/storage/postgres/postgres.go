package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/authgate/pkg/auth"
)

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// Store implements auth.UnitOfWorkFactory on a SQL database.
// Each unit of work is one database transaction.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on db. Run Migrate first.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin starts a transaction
func (s *Store) Begin(ctx context.Context) (auth.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return &unitOfWork{tx: tx}, nil
}

type unitOfWork struct {
	tx   *sql.Tx
	done bool
}

func (u *unitOfWork) Users() auth.UserRepository {
	return &userRepository{tx: u.tx}
}

func (u *unitOfWork) Profiles() auth.ProfileRepository {
	return &profileRepository{tx: u.tx}
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.done = true
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

type userRepository struct {
	tx *sql.Tx
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	query := `
		SELECT id, email, credential_hash, created_at
		FROM accounts
		WHERE email = $1
	`

	var account auth.Account
	err := r.tx.QueryRowContext(ctx, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.CredentialHash,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *userRepository) Add(ctx context.Context, account *auth.Account) error {
	query := `
		INSERT INTO accounts (id, email, credential_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.tx.ExecContext(ctx, query,
		account.ID.String(),
		account.Email,
		account.CredentialHash,
		account.CreatedAt,
	)
	if err != nil {
		return insertError("account", err)
	}
	return nil
}

type profileRepository struct {
	tx *sql.Tx
}

func (r *profileRepository) GetByUserID(ctx context.Context, accountID uuid.UUID) (*auth.Profile, error) {
	query := `
		SELECT account_id, username, first_name, last_name, avatar_url, updated_at
		FROM profiles
		WHERE account_id = $1
	`

	var profile auth.Profile
	err := r.tx.QueryRowContext(ctx, query, accountID.String()).Scan(
		&profile.AccountID,
		&profile.Username,
		&profile.FirstName,
		&profile.LastName,
		&profile.AvatarURL,
		&profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

func (r *profileRepository) Add(ctx context.Context, profile *auth.Profile) error {
	query := `
		INSERT INTO profiles (account_id, username, first_name, last_name, avatar_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.tx.ExecContext(ctx, query,
		profile.AccountID.String(),
		profile.Username,
		profile.FirstName,
		profile.LastName,
		profile.AvatarURL,
		profile.UpdatedAt,
	)
	if err != nil {
		return insertError("profile", err)
	}
	return nil
}

// Update writes the name, avatar and timestamp; the username is not touched
func (r *profileRepository) Update(ctx context.Context, profile *auth.Profile) error {
	query := `
		UPDATE profiles
		SET first_name = $1, last_name = $2, avatar_url = $3, updated_at = $4
		WHERE account_id = $5
	`

	result, err := r.tx.ExecContext(ctx, query,
		profile.FirstName,
		profile.LastName,
		profile.AvatarURL,
		profile.UpdatedAt,
		profile.AccountID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if rows == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func insertError(entity string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create %s: %w", entity, auth.ErrDuplicate)
	}
	return fmt.Errorf("failed to create %s: %w", entity, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
