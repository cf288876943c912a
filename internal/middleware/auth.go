package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/audit"
	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

const ServiceKeyHeader = "X-Service-Key"

// ServiceKeyMiddleware guards the company-side API. Callers are other
// backend services sharing SERVICE_API_KEY, never browsers.
type ServiceKeyMiddleware struct {
	apiKey string
}

func NewServiceKeyMiddleware(apiKey string) *ServiceKeyMiddleware {
	return &ServiceKeyMiddleware{apiKey: apiKey}
}

func (m *ServiceKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" {
			log.Error().Msg("service key middleware: SERVICE_API_KEY not configured")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Service access not configured",
			})
			return
		}

		key := r.Header.Get(ServiceKeyHeader)
		if key == "" {
			writeError(w, apperrors.Unauthorized("Missing service key"))
			return
		}

		if !util.ConstantTimeEqual(key, m.apiKey) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"reason": "invalid_service_key"},
			})
			writeError(w, apperrors.Unauthorized("Invalid service key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
