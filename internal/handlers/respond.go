package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/estpark/parking-lot/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Precondition
// violations are client errors the UI surfaces directly.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidSpot), errors.Is(err, models.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNotFree),
		errors.Is(err, models.ErrNotOccupied),
		errors.Is(err, models.ErrNotBlocked),
		errors.Is(err, models.ErrTargetOccupied),
		errors.Is(err, models.ErrNoPendingFinish),
		errors.Is(err, models.ErrNoMove):
		status = http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
