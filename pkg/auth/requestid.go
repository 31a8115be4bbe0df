package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// Incoming IDs longer than this are discarded and replaced, so a hostile
// client cannot stuff arbitrary payloads into audit logs.
const maxRequestIDLen = 64

type ctxKeyRequestID struct{}

// RequestIDMiddleware tags each request with a correlation ID. A
// well-formed client-supplied X-Request-ID is honored so IDs survive
// proxy hops; otherwise a fresh UUID is minted. The ID is echoed on the
// response and placed in the request context for handlers and loggers.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), ctxKeyRequestID{}, id)))
	})
}

// GetRequestID returns the correlation ID stored by RequestIDMiddleware,
// or the empty string when the request went through no middleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}
