package httpx

import (
	"errors"
	"net/http"

	"github.com/steward-admin/steward/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Validation failures
// surface every violated field; anything unexpected becomes an opaque 500
// suggesting retry.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		FieldErrors(w, verr.Fields)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "The requested record does not exist.")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "You are not allowed to perform this action.")
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", "The record conflicts with an existing one.")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "Something went wrong. Please try again.")
	}
}
