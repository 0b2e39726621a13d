package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()

	handler := RecoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sso/google/start", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "boom", hook.LastEntry().Data["panic"])
	assert.Equal(t, "/sso/google/start", hook.LastEntry().Data["path"])
}

func TestRecoverMiddleware_AbortHandlerPropagates(t *testing.T) {
	logger, _ := test.NewNullLogger()

	handler := RecoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
