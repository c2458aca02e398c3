package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/estpark/parking-lot/internal/format"
	"github.com/estpark/parking-lot/internal/ledger"
	"github.com/estpark/parking-lot/internal/lot"
	"github.com/estpark/parking-lot/internal/middleware"
	"github.com/estpark/parking-lot/internal/models"
)

// SpotsHandler exposes the lot session over HTTP: the occupancy grid, the
// block/occupy flows, the two-step finish flow and the move transaction.
type SpotsHandler struct {
	session *lot.Session
	ledger  *ledger.Ledger
}

// NewSpotsHandler creates a new spots handler
func NewSpotsHandler(session *lot.Session, l *ledger.Ledger) *SpotsHandler {
	return &SpotsHandler{session: session, ledger: l}
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (models.Claims, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return models.Claims{}, false
	}
	return *claims, true
}

// List returns the state of every spot plus the move in progress, if any.
func (h *SpotsHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"spots":    h.session.Snapshot(),
		"occupied": h.session.OccupiedCount(),
	}
	if src := h.session.MoveSource(); src != "" {
		resp["move_source"] = src
	}
	writeJSON(w, http.StatusOK, resp)
}

type blockRequest struct {
	Plate string `json:"plate"`
}

// Block takes a spot out of service.
func (h *SpotsHandler) Block(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req blockRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.session.Block(actor, r.PathValue("label"), req.Plate); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

// Open returns a blocked spot to service.
func (h *SpotsHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.session.Open(actor, r.PathValue("label")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "free"})
}

type occupyRequest struct {
	VehicleClass models.VehicleClass `json:"vehicle_class"`
	Plate        string              `json:"plate"`
}

// Occupy starts a visit on a spot.
func (h *SpotsHandler) Occupy(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req occupyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !models.IsValidVehicleClass(req.VehicleClass) {
		http.Error(w, "Invalid vehicle class", http.StatusBadRequest)
		return
	}

	record, err := h.session.Occupy(actor, r.PathValue("label"), req.VehicleClass, req.Plate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// pendingFinishResponse mirrors the finish confirmation dialog: the visit
// snapshot plus the formatted duration.
type pendingFinishResponse struct {
	SpotID        string                 `json:"spot_id"`
	Record        models.OccupancyRecord `json:"record"`
	EndTime       string                 `json:"end_time"`
	DurationMs    int64                  `json:"duration_ms"`
	DurationLabel string                 `json:"duration_label"`
	VehicleLabel  string                 `json:"vehicle_label"`
}

// BeginFinish computes the duration of the visit on a spot without closing
// it. The charge is confirmed (or the finish cancelled) in a second call.
func (h *SpotsHandler) BeginFinish(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	pf, err := h.session.BeginFinish(actor, r.PathValue("label"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingFinishResponse{
		SpotID:        pf.SpotID,
		Record:        pf.Record,
		EndTime:       pf.EndTime.Format("2006-01-02T15:04:05Z07:00"),
		DurationMs:    pf.Duration.Milliseconds(),
		DurationLabel: format.FormatDuration(pf.Duration),
		VehicleLabel:  format.VehicleLabel(pf.Record.VehicleClass),
	})
}

// CancelFinish abandons the finish in progress.
func (h *SpotsHandler) CancelFinish(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.session.CancelFinish(actor); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type chargeRequest struct {
	Amount string `json:"amount"`
}

// ConfirmCharge closes the visit: frees the spot and writes the history
// record through the ledger.
func (h *SpotsHandler) ConfirmCharge(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	record, err := h.session.ConfirmCharge(actor, r.PathValue("label"), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	saved, err := h.ledger.Write(r.Context(), *record)
	if err != nil {
		// The spot is already free; surface the persistence failure without
		// pretending the visit did not close.
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// BeginMove marks a spot as the source of a move.
func (h *SpotsHandler) BeginMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.session.BeginMove(actor, r.PathValue("label")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"move_source": r.PathValue("label")})
}

type moveTargetRequest struct {
	Target string `json:"target"`
}

// MoveTarget completes the move in progress onto a free target spot.
func (h *SpotsHandler) MoveTarget(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req moveTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.session.SelectMoveTarget(actor, req.Target); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "done"})
}

// CancelMove abandons the move in progress.
func (h *SpotsHandler) CancelMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.session.CancelMove(actor); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
