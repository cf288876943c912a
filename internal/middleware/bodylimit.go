package middleware

import (
	"net/http"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
)

// DefaultMaxBodySize comfortably fits any contact or login payload.
const DefaultMaxBodySize = 64 << 10

// BodyLimitMiddleware rejects declared oversize bodies up front and caps the
// rest while they are read. Handlers see the cap as *http.MaxBytesError.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > m.maxSize {
			writeError(w, apperrors.PayloadTooLarge())
			return
		}

		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		}
		next.ServeHTTP(w, r)
	})
}
