package handlers

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/estpark/parking-lot/internal/auth"
	"github.com/estpark/parking-lot/internal/db"
	"github.com/estpark/parking-lot/internal/models"
)

// UsersHandler serves the admin user panel and the self-service profile.
type UsersHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(authService *auth.Service, userCollection db.UserCollection) *UsersHandler {
	return &UsersHandler{authService: authService, userCollection: userCollection}
}

// List returns every account. Routed behind the admin role requirement.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userCollection.FindUsers(r.Context())
	if err != nil {
		http.Error(w, "Failed to load users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type updateAccountRequest struct {
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
}

// UpdateAccount changes another user's display name and role. Routed behind
// the admin role requirement.
func (h *UsersHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !models.IsValidRole(req.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}
	if err := h.authService.ValidateDisplayName(req.DisplayName); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	if err := h.userCollection.UpdateUserAccount(r.Context(), id, req.DisplayName, req.Role); err != nil {
		http.Error(w, "Failed to update user", http.StatusInternalServerError)
		return
	}
	log.WithFields(log.Fields{"user_id": id, "role": req.Role}).Info("User account updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// UpdateProfile lets the authenticated user change their own display name
// and, optionally, password. Role changes go through the admin panel only.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.authService.ValidateDisplayName(req.DisplayName); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	passwordHash := ""
	if req.Password != "" {
		if err := h.authService.ValidatePassword(req.Password); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hash, err := h.authService.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "Failed to update password", http.StatusInternalServerError)
			return
		}
		passwordHash = hash
	}

	if err := h.userCollection.UpdateProfile(r.Context(), actor.UserID, req.DisplayName, passwordHash); err != nil {
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
