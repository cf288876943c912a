package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/model"
)

const PortalSessionCookie = "portal_session"

type contextKey string

const (
	PortalAccountContextKey contextKey = "portalAccount"
	SessionTokenContextKey  contextKey = "sessionToken"
)

func GetPortalAccount(ctx context.Context) *model.PortalAccount {
	if account, ok := ctx.Value(PortalAccountContextKey).(*model.PortalAccount); ok {
		return account
	}
	return nil
}

func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(SessionTokenContextKey).(string)
	return token
}

// WithPortalAccount is used by tests and by handlers that authenticate inline.
func WithPortalAccount(ctx context.Context, account *model.PortalAccount, token string) context.Context {
	ctx = context.WithValue(ctx, PortalAccountContextKey, account)
	return context.WithValue(ctx, SessionTokenContextKey, token)
}

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.PortalAccount, error)
}

// PortalSessionMiddleware admits requests carrying a live portal session,
// from either the Authorization header or the session cookie.
type PortalSessionMiddleware struct {
	sessions SessionValidator
}

func NewPortalSessionMiddleware(sessions SessionValidator) *PortalSessionMiddleware {
	return &PortalSessionMiddleware{sessions: sessions}
}

func (m *PortalSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractSessionToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing session token"))
			return
		}

		account, err := m.sessions.ValidateSession(r.Context(), token)
		if err != nil {
			writeError(w, apperrors.Internal("Session validation failed").WithCause(err))
			return
		}

		if account == nil {
			writeError(w, apperrors.Authentication("Session expired or invalid"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPortalAccount(r.Context(), account, token)))
	})
}

// ExtractSessionToken reads a bearer token, falling back to the session
// cookie. Query-string tokens are not accepted.
func ExtractSessionToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookie, err := r.Cookie(PortalSessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func usesBearerToken(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     PortalSessionCookie,
		Value:    token,
		Path:     "/portal",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     PortalSessionCookie,
		Value:    "",
		Path:     "/portal",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
