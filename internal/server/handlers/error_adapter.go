package handlers

import (
	"net/http"

	apperrors "github.com/3leaps/bucketnav/internal/errors"
)

// ErrorResponder writes err to w.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

var httpErrorResponder ErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder replaces the responder used by every handler.
// nil restores the default.
func SetHTTPErrorResponder(fn ErrorResponder) {
	if fn == nil {
		fn = apperrors.RespondWithError
	}
	httpErrorResponder = fn
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = apperrors.RespondWithError
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
