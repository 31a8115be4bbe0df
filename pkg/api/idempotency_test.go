package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyMiddleware_ReplaysCachedResponse(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	calls := 0
	handler := IdempotencyMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"call":%d}`, calls)
	}))

	makeReq := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/requirements", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "key-1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := makeReq()
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, calls)

	second := makeReq()
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls, "handler must not run again for the same key")
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
}

func TestIdempotencyMiddleware_DistinctKeys(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	calls := 0
	handler := IdempotencyMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, key := range []string{"key-a", "key-b"} {
		req := httptest.NewRequest("POST", "/requirements", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyMiddleware_SkipsGET(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	calls := 0
	handler := IdempotencyMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/reports", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, calls, "GET requests are never cached")
}

func TestIdempotencyMiddleware_ErrorsNotCached(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	calls := 0
	handler := IdempotencyMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/requirements", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "key-1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}
	assert.Equal(t, 2, calls, "failed responses must not be replayed")
}
