package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// ListUsers returns user profiles, optionally filtered by role.
// GET /api/users?role=&active=true
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.store.ListUsers(r.Context(), store.UserFilter{
		Role:       models.Role(q.Get("role")),
		ActiveOnly: q.Get("active") == "true",
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser returns one profile.
// GET /api/users/{uid}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, u)
}

type createUserReq struct {
	UID      string      `json:"uid"`
	Email    string      `json:"email"`
	FullName string      `json:"fullName"`
	Role     models.Role `json:"role"`
	Phone    string      `json:"phone"`
}

// CreateUser registers a profile. When the request names a UID the profile
// is linked to that Firebase account; without one a profile-only client is
// created under a generated id, so walk-in clients exist in the system
// before they ever sign in.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FullName == "" {
		jsonError(w, "fullName is required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleClient
	}
	if !req.Role.Valid() {
		jsonError(w, "invalid role", http.StatusBadRequest)
		return
	}

	u := models.User{
		UID:        req.UID,
		Email:      req.Email,
		FullName:   req.FullName,
		Role:       req.Role,
		Phone:      req.Phone,
		Active:     true,
		HasAccount: req.UID != "",
		CreatedBy:  actorID(r, ""),
		CreatedAt:  time.Now().UTC(),
	}
	if u.UID == "" {
		u.UID = "user-" + uuid.NewString()
	}

	if err := h.store.CreateUser(r.Context(), &u); err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, map[string]string{"uid": u.UID, "message": "User created"})
}

// UpdateUser applies a partial update to a profile. Manager only.
// PATCH /api/users/{uid}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    *string      `json:"email"`
		FullName *string      `json:"fullName"`
		Role     *models.Role `json:"role"`
		Phone    *string      `json:"phone"`
		Active   *bool        `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		jsonError(w, "invalid role", http.StatusBadRequest)
		return
	}

	u, err := h.store.UpdateUser(r.Context(), chi.URLParam(r, "uid"), func(u *models.User) error {
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.FullName != nil {
			u.FullName = *req.FullName
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.Phone != nil {
			u.Phone = *req.Phone
		}
		if req.Active != nil {
			u.Active = *req.Active
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, u)
}

// DeleteUser removes a profile. Manager only. Tickets referencing the uid
// keep their references; history stays intact.
// DELETE /api/users/{uid}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteUser(r.Context(), chi.URLParam(r, "uid")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
