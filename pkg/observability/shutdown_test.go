package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestShutdownManager_DrainsServersAndRunsFuncs(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	var calls int32
	sm := NewShutdownManager(quietLogger(), 0)
	sm.RegisterServer(server)
	sm.RegisterShutdownFunc(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func TestShutdownManager_JoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	sm := NewShutdownManager(quietLogger(), 0)
	sm.RegisterShutdownFunc(func(context.Context) error { return errA })
	sm.RegisterShutdownFunc(func(context.Context) error { return errB })

	err := sm.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}
