package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
)

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	var responded bool
	handler := RecoveryMiddleware(NewLogger(InfoLevel, &buf), func(w http.ResponseWriter, r *http.Request) {
		responded = true
		w.WriteHeader(http.StatusInternalServerError)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest(http.MethodPost, "/businesses", nil)
	ctx := contextkeys.WithRequestID(req.Context(), "req-9")
	req = req.WithContext(contextkeys.WithRequestStartTime(ctx, time.Now()))
	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() { handler.ServeHTTP(rr, req) })

	assert.True(t, responded)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), `"route":"POST /businesses"`)
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	assert.Contains(t, buf.String(), "handler exploded")
	assert.Contains(t, buf.String(), `"elapsed_ms"`)
}

func TestRecoveryMiddleware_DefaultResponse(t *testing.T) {
	handler := RecoveryMiddleware(NewLogger(ErrorLevel, &bytes.Buffer{}), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Internal Server Error")
}

func TestRecoveryMiddleware_ReraisesAbort(t *testing.T) {
	handler := RecoveryMiddleware(NewLogger(ErrorLevel, &bytes.Buffer{}), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
