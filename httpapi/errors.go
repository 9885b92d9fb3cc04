package httpapi

import (
	"errors"
	"net/http"

	"github.com/rtxlabs/vperp/apperror"
)

// writeError maps err to an HTTP response. Typed apperror.Errors carry
// their own status (apperror.Kind.HTTPStatus); anything else is an
// unclassified internal error.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		writeErrorJSON(w, appErr.Kind.HTTPStatus(), appErr.Code, appErr.Message)
		return
	}
	writeErrorJSON(w, http.StatusInternalServerError, "Internal", err.Error())
}
