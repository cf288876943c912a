package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware applies the double-submit cookie check to cookie-authenticated
// portal requests. Requests carrying an Authorization bearer token cannot be
// forged cross-site and skip the check.
type CSRFMiddleware struct {
	isProduction bool
}

func NewCSRFMiddleware(isProduction bool) *CSRFMiddleware {
	return &CSRFMiddleware{isProduction: isProduction}
}

func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if usesBearerToken(r) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			token, err := util.GenerateToken()
			if err != nil {
				writeError(w, apperrors.Internal("Failed to generate security token").WithCause(err))
				return
			}
			m.setCSRFCookie(w, token)
			cookie = &http.Cookie{Value: token}
		}

		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		// Without a session cookie there is no ambient credential to abuse.
		// Login routes add RequireToken on top of this.
		if _, err := r.Cookie(PortalSessionCookie); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if !checkCSRF(w, r, cookie.Value) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireToken enforces the double-submit check on unsafe requests whether or
// not a session cookie is present, so a cross-site form cannot sign the
// browser into another account.
func (m *CSRFMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if usesBearerToken(r) || isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		var expected string
		if cookie, err := r.Cookie(CSRFCookieName); err == nil {
			expected = cookie.Value
		}
		if !checkCSRF(w, r, expected) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkCSRF writes a 403 and returns false unless the header matches expected.
func checkCSRF(w http.ResponseWriter, r *http.Request, expected string) bool {
	headerToken := r.Header.Get(CSRFHeaderName)
	if expected == "" || headerToken == "" || !util.ConstantTimeEqual(expected, headerToken) {
		log.Ctx(r.Context()).Warn().
			Str("path", r.URL.Path).
			Bool("headerPresent", headerToken != "").
			Msg("csrf check failed")
		writeError(w, apperrors.Forbidden("Missing or invalid CSRF token"))
		return false
	}
	return true
}

func (m *CSRFMiddleware) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/portal",
		HttpOnly: false, // read by the portal frontend and echoed in the header
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}
