package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
	"github.com/tradesmatepro/portal-identity/internal/httputil"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON reads the body into dst and runs its validate tags.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.ValidationError("Request body is required")
		case errors.As(err, &maxErr):
			return apperrors.PayloadTooLarge()
		default:
			return apperrors.InvalidInput("body", "must be valid JSON")
		}
	}
	return util.ValidateStruct(dst)
}
