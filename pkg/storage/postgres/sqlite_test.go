package postgres

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/authgate/pkg/auth"
	"github.com/platinummonkey/authgate/pkg/sso"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DefaultConnectionConfig(DriverSQLite, ":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	// Idempotent
	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	return NewStore(db)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com", CredentialHash: "hash", CreatedAt: now}
	profile := &auth.Profile{AccountID: account.ID, Username: auth.StringPtr("ada"), FirstName: auth.StringPtr("Ada"), UpdatedAt: now}

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Users().Add(ctx, account))
	require.NoError(t, uow.Profiles().Add(ctx, profile))
	require.NoError(t, uow.Commit(ctx))

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx)

	got, err := uow.Users().GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.True(t, now.Equal(got.CreatedAt))

	gotProfile, err := uow.Profiles().GetByUserID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", auth.StringValue(gotProfile.Username))
	assert.Equal(t, "Ada", auth.StringValue(gotProfile.FirstName))
	assert.Nil(t, gotProfile.LastName)
}

func TestSQLiteStore_DuplicateEmail(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Users().Add(ctx, &auth.Account{ID: uuid.New(), Email: "ada@example.com", CredentialHash: "a", CreatedAt: time.Now()}))
	require.NoError(t, uow.Commit(ctx))

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	err = uow.Users().Add(ctx, &auth.Account{ID: uuid.New(), Email: "ada@example.com", CredentialHash: "b", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, auth.ErrDuplicate)
	require.NoError(t, uow.Rollback(ctx))
}

func TestSQLiteStore_RollbackDiscardsWrites(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Users().Add(ctx, &auth.Account{ID: uuid.New(), Email: "ada@example.com", CredentialHash: "a", CreatedAt: time.Now()}))
	require.NoError(t, uow.Rollback(ctx))

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx)
	_, err = uow.Users().GetByEmail(ctx, "ada@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSQLiteStore_Provisioning(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	tokens, err := auth.NewJWTTokenService(auth.JWTConfig{Secret: []byte("secret")})
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	provisioner := sso.NewUserProvisioner(store, tokens, logger)

	name := "Ada Lovelace"
	identity := &sso.Identity{Provider: sso.ProviderGoogle, Email: "ada@example.com", EmailVerified: true, DisplayName: &name}

	first, err := provisioner.Provision(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "ada", auth.StringValue(first.Profile.Username))
	assert.Equal(t, "Lovelace", auth.StringValue(first.Profile.LastName))

	renamed := "Ada King"
	identity.DisplayName = &renamed
	second, err := provisioner.Provision(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.Equal(t, "King", auth.StringValue(second.Profile.LastName))

	claims, err := tokens.ParseAccessToken(second.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID.String(), claims.Subject)
}
