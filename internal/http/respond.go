package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pfm/internal/core"
	"pfm/internal/log"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps the ledger error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient_funds"
	case errors.Is(err, core.ErrBudgetOverlap):
		return http.StatusUnprocessableEntity, "budget_overlap"
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, core.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, core.ErrStorageConflict):
		return http.StatusServiceUnavailable, "storage_conflict"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err. Unclassified errors are logged and their text is
// not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, log.NewFields())
		msg = "internal error"
	}
	if core.IsRetryable(err) {
		w.Header().Set("Retry-After", strconv.Itoa(1))
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// decodeJSON reads a single JSON object into dst. Malformed bodies are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: malformed request body: %v", core.ErrValidation, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrValidation)
	}
	return nil
}

// pathID parses the {id} wildcard.
func pathID(r *http.Request) (core.ID, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", r.PathValue("id"), core.ErrNotFound)
	}
	return core.ID(id), nil
}
