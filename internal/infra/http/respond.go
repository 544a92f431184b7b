package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Spok95/makerspace/internal/auth"
	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/export"
	"github.com/Spok95/makerspace/internal/usage"
)

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Available string `json:"available,omitempty"`
	Requested string `json:"requested,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError: единственное место, где ошибки превращаются в HTTP-коды.
func (a *API) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		verr *usage.ValidationError
		ierr *usage.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		status, body.Field = http.StatusUnprocessableEntity, verr.Field
	case errors.As(err, &ierr):
		status = http.StatusConflict
		body.Available, body.Requested = ierr.Available.String(), ierr.Requested.String()
	case errors.Is(err, usage.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, usage.ErrNoPendingUsage),
		errors.Is(err, usage.ErrStaleCandidate),
		errors.Is(err, usage.ErrCommitInProgress),
		errors.Is(err, auth.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, usage.ErrMaterialNotFound), errors.Is(err, export.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrFederatedDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, usage.ErrTransactionFailed), errors.Is(err, catalog.ErrFetch):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", "err", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
