package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	config := DefaultConnectionConfig(DriverPostgres, "postgres://localhost/authgate")

	assert.Equal(t, DriverPostgres, config.Driver)
	assert.Equal(t, "postgres://localhost/authgate", config.URL)
	assert.Equal(t, 20, config.MaxConns)
	assert.Equal(t, 2, config.MinConns)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, time.Hour, config.MaxLifetime)
	assert.Equal(t, 10*time.Minute, config.MaxIdleTime)
}

func TestOpen(t *testing.T) {
	t.Run("pings and configures the pool", func(t *testing.T) {
		_, mock, err := sqlmock.NewWithDSN("open-ok", sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing()

		config := DefaultConnectionConfig("sqlmock", "open-ok")
		config.MaxConns = 7
		db, err := Open(context.Background(), config)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 7, db.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping failure", func(t *testing.T) {
		_, mock, err := sqlmock.NewWithDSN("open-fail", sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		_, err = Open(context.Background(), DefaultConnectionConfig("sqlmock", "open-fail"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), DefaultConnectionConfig("nosuchdriver", "x"))
		assert.Error(t, err)
	})

	t.Run("sqlite uses one connection", func(t *testing.T) {
		config := DefaultConnectionConfig(DriverSQLite, ":memory:")
		db, err := Open(context.Background(), config)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	})
}
