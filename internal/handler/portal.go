package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradesmatepro/portal-identity/internal/middleware"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/service"
)

type PortalSessions interface {
	Authenticate(ctx context.Context, email, password string) (*service.LoginResult, error)
	GenerateMagicLink(ctx context.Context, email string) (*service.MagicLinkResult, error)
	ExchangeMagicLink(ctx context.Context, token string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type PortalAccounts interface {
	CompletePasswordSetup(ctx context.Context, accountID string) (*model.PortalAccount, error)
	ListCustomers(ctx context.Context, accountID string) ([]model.GlobalCustomer, error)
}

type PortalSignup interface {
	CreateSelfService(ctx context.Context, email string) (*model.AuthIdentity, error)
	ConfirmEmail(ctx context.Context, token string) (*model.AuthIdentity, error)
}

type Middleware func(http.Handler) http.Handler

// PortalHandler serves the customer-facing API under /portal/api.
type PortalHandler struct {
	sessions       PortalSessions
	accounts       PortalAccounts
	signup         PortalSignup
	requireSession Middleware
	requireCSRF    Middleware
	loginLimit     Middleware
	magicLinkLimit Middleware
	isProduction   bool
}

func NewPortalHandler(
	sessions PortalSessions,
	accounts PortalAccounts,
	signup PortalSignup,
	requireSession Middleware,
	requireCSRF Middleware,
	loginLimit Middleware,
	magicLinkLimit Middleware,
	isProduction bool,
) *PortalHandler {
	return &PortalHandler{
		sessions:       sessions,
		accounts:       accounts,
		signup:         signup,
		requireSession: requireSession,
		requireCSRF:    requireCSRF,
		loginLimit:     loginLimit,
		magicLinkLimit: magicLinkLimit,
		isProduction:   isProduction,
	}
}

func (h *PortalHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.requireCSRF, h.loginLimit).Post("/login", h.Login)
	r.With(h.magicLinkLimit).Post("/magic-link", h.RequestMagicLink)
	r.With(h.requireCSRF, h.loginLimit).Post("/magic-link/exchange", h.ExchangeMagicLink)
	r.With(h.magicLinkLimit).Post("/signup", h.Signup)
	r.Post("/confirm-email", h.ConfirmEmail)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/session", h.Session)
		r.Post("/logout", h.Logout)
		r.Post("/password-setup/complete", h.CompletePasswordSetup)
	})

	return r
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

func (h *PortalHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.sessions.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, result.Token, result.ExpiresAt, h.isProduction)
	writeJSON(w, http.StatusOK, result)
}

// RequestMagicLink emails a link. The token itself only ever travels in the
// email, never in this response.
func (h *PortalHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.sessions.GenerateMagicLink(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"sent":      true,
		"expiresAt": result.ExpiresAt,
	})
}

func (h *PortalHandler) ExchangeMagicLink(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.sessions.ExchangeMagicLink(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, result.Token, result.ExpiresAt, h.isProduction)
	writeJSON(w, http.StatusOK, result)
}

// Signup answers the same way whether or not the email is already known.
func (h *PortalHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.signup.CreateSelfService(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (h *PortalHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	identity, err := h.signup.ConfirmEmail(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"confirmed": true,
		"email":     identity.Email,
	})
}

func (h *PortalHandler) Session(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetPortalAccount(r.Context())

	customers, err := h.accounts.ListCustomers(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if customers == nil {
		customers = []model.GlobalCustomer{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":   account,
		"customers": customers,
	})
}

func (h *PortalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), middleware.GetSessionToken(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PortalHandler) CompletePasswordSetup(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetPortalAccount(r.Context())

	updated, err := h.accounts.CompletePasswordSetup(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"account": updated})
}
