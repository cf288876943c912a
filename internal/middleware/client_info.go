package middleware

import (
	"net/http"

	"github.com/tradesmatepro/portal-identity/internal/audit"
)

// ClientInfo records the caller's IP and user agent on the request context so
// sessions and activity rows can carry them.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithClient(r.Context(), audit.Client{
			IP:        audit.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
