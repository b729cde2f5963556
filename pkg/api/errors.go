package api

import (
	"errors"
	"net/http"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/httputil"
)

// writeAuthError maps the auth package's typed failures onto HTTP
// statuses. Unexpected errors are reported as opaque 500s so storage
// details never reach clients.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrWrongLoginMethod):
		httputil.WriteUnauthorized(w, err.Error())

	case errors.Is(err, auth.ErrTokenSignature),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrUnknownSubject):
		httputil.WriteUnauthorized(w, "invalid or expired token")

	case errors.Is(err, auth.ErrEmailAlreadyLocal),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrDuplicateUsername):
		httputil.WriteConflict(w, err.Error())

	case errors.Is(err, auth.ErrResetTokenInvalid),
		errors.Is(err, auth.ErrInvalidInput):
		httputil.WriteBadRequest(w, err.Error())

	case errors.Is(err, auth.ErrNotFound):
		httputil.WriteNotFoundError(w, "not found")

	case errors.Is(err, auth.ErrStorageUnavailable):
		httputil.WriteServiceUnavailable(w, "storage unavailable")

	case errors.Is(err, auth.ErrNotificationFailed):
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "failed to send notification email")

	default:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
