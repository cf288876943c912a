package middleware

import (
	"net/http"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/httputil"
)

func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	httputil.WriteError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}
