package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/estpark/parking-lot/internal/format"
	"github.com/estpark/parking-lot/internal/ledger"
	"github.com/estpark/parking-lot/internal/models"
)

// HistoryHandler exposes the per-day ledger of completed visits.
type HistoryHandler struct {
	ledger *ledger.Ledger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(l *ledger.Ledger) *HistoryHandler {
	return &HistoryHandler{ledger: l}
}

type historyResponse struct {
	DateKey string                 `json:"date_key"`
	Total   int                    `json:"total"`
	Records []models.HistoryRecord `json:"records"`
}

// Query returns the visits of one calendar day, sorted by start time. The
// date defaults to today.
func (h *HistoryHandler) Query(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = format.DateKey(time.Now())
	}
	if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	records, err := h.ledger.QueryByDate(r.Context(), dateKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	format.SortByStartTime(records)
	if records == nil {
		records = []models.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{DateKey: dateKey, Total: len(records), Records: records})
}

// Update edits the plate, vehicle class or amount of a record. Admin only.
func (h *HistoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var update models.HistoryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !models.IsValidVehicleClass(update.VehicleClass) {
		http.Error(w, "Invalid vehicle class", http.StatusBadRequest)
		return
	}

	if err := h.ledger.Update(r.Context(), actor, r.PathValue("id"), update); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete removes a record. Admin only.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.ledger.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
