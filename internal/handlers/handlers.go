// Package handlers wires the REST API.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/servicedesk-pro/servicedesk/internal/auth"
	"github.com/servicedesk-pro/servicedesk/internal/images"
	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/internal/ticket"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store   store.Store
	tickets *ticket.Service
	auth    *auth.Service
	images  *images.Service
}

// New creates a new Handler.
func New(st store.Store, tickets *ticket.Service, authService *auth.Service, imageService *images.Service) *Handler {
	return &Handler{
		store:   st,
		tickets: tickets,
		auth:    authService,
		images:  imageService,
	}
}

// Routes assembles the API route tree. The ticket surface stays reachable
// without a token (actor ids then come from the request body); user
// management and reassignment require a manager token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(OptionalAuth(h.auth))

		r.Post("/auth/token", h.ExchangeToken)

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", h.ListTickets)
			r.Post("/", h.CreateTicket)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTicket)
				r.Post("/status", h.UpdateTicketStatus)
				r.Post("/assign", h.AssignTicket)
				r.Get("/report", h.TicketReport)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(models.RoleManager))
					r.Post("/reassign", h.ReassignTicket)
				})

				r.Get("/notes", h.ListNotes)
				r.Post("/notes", h.AddNote)

				r.Get("/parts", h.ListParts)
				r.Post("/parts", h.AddPart)
				r.Delete("/parts/{partID}", h.RemovePart)
				r.Post("/parts/{partID}/status", h.UpdatePartStatus)

				r.Get("/images", h.ListImages)
				r.Post("/images", h.UploadImage)
				r.Delete("/images/{filename}", h.DeleteImage)
			})
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", h.ListDevices)
			r.Post("/", h.CreateDevice)
			r.Post("/find-or-create", h.FindOrCreateDevice)
			r.Get("/{id}", h.GetDevice)
			r.Patch("/{id}", h.UpdateDevice)
			r.Get("/{id}/history", h.DeviceHistory)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Get("/{uid}", h.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(models.RoleWorker, models.RoleManager))
				r.Post("/", h.CreateUser)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(models.RoleManager))
				r.Patch("/{uid}", h.UpdateUser)
				r.Delete("/{uid}", h.DeleteUser)
			})
		})

		r.Get("/reports/stats", h.ReportStats)
	})

	return r
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExchangeToken swaps a Firebase ID token for a service JWT.
// POST /api/auth/token
func (h *Handler) ExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.IDToken == "" {
		jsonError(w, "idToken is required", http.StatusBadRequest)
		return
	}

	token, user, err := h.auth.ExchangeIDToken(r.Context(), req.IDToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// --- helpers ---

func jsonOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ticket.ErrInvalidTransition):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ticket.ErrMissingField),
		errors.Is(err, images.ErrNotImage),
		errors.Is(err, images.ErrTooLarge),
		errors.Is(err, images.ErrNoFile):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrNoProfile):
		jsonError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, auth.ErrInactiveUser), errors.Is(err, auth.ErrForbidden):
		jsonError(w, err.Error(), http.StatusForbidden)
	default:
		log.Printf("internal error: %v", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// actorID resolves who performed an action: the authenticated user when a
// token was sent, otherwise the actor the request body names.
func actorID(r *http.Request, bodyActor string) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	return bodyActor
}
