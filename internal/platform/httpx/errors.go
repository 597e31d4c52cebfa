package httpx

import (
	"errors"
	"net/http"

	"github.com/akademika-id/akademika/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
//
// Authentication failures stay deliberately uninformative: the caller never
// learns which check failed. Internal errors never leak their cause; the
// request id is the correlation handle for operators.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, r, http.StatusUnauthorized, "Unauthorized", "invalid or expired credentials")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, r, http.StatusForbidden, "Forbidden", "insufficient permission")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, r, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, r, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, r, http.StatusInternalServerError, "Internal Error", "")
	}
}
