package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/velumart/elite-slot/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps domain sentinels to HTTP statuses. Details attached with
// errors.WithDetail become the human-readable message; the code field stays
// machine-stable.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPendingReview):
		status, code = http.StatusUnprocessableEntity, "pricing_pending_review"
	case errors.Is(err, domain.ErrModerationPending):
		status, code = http.StatusConflict, "moderation_pending"
	case errors.Is(err, domain.ErrSerializationFailure):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	}

	msg := err.Error()
	if details := errors.GetAllDetails(err); len(details) > 0 {
		msg = strings.Join(details, "; ")
	}
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}
