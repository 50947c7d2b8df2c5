package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/servicedesk-pro/servicedesk/internal/images"
	"github.com/servicedesk-pro/servicedesk/internal/report"
	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/internal/ticket"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// ListTickets returns all tickets, optionally filtered.
// GET /api/tickets?clientId=&technicianId=&status=
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TicketFilter{
		ClientID:     q.Get("clientId"),
		TechnicianID: q.Get("technicianId"),
		Status:       models.Status(q.Get("status")),
		OpenOnly:     q.Get("open") == "true",
	}

	tickets, err := h.tickets.List(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}

type createTicketReq struct {
	ClientID              string                 `json:"clientId"`
	CreatedBy             string                 `json:"createdBy"`
	Description           string                 `json:"description"`
	DeviceID              string                 `json:"deviceId"`
	Device                *models.DeviceSnapshot `json:"device"`
	PreferredDeliveryDate *string                `json:"preferredDeliveryDate"` // RFC 3339
	AutoAssign            *bool                  `json:"autoAssign"`            // default true
}

// CreateTicket registers a ticket and auto-assigns the least-loaded
// technician. A body carrying only a description still succeeds; the client
// id then falls back to the authenticated user, or "unknown".
// POST /api/tickets
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		jsonError(w, "description is required", http.StatusBadRequest)
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = actorID(r, "unknown")
	}

	var preferred *time.Time
	if req.PreferredDeliveryDate != nil && *req.PreferredDeliveryDate != "" {
		t, err := time.Parse(time.RFC3339, *req.PreferredDeliveryDate)
		if err != nil {
			jsonError(w, "preferredDeliveryDate must be RFC 3339 format", http.StatusBadRequest)
			return
		}
		preferred = &t
	}

	created, err := h.tickets.Create(r.Context(), ticket.CreateInput{
		ClientID:          clientID,
		CreatedBy:         actorID(r, req.CreatedBy),
		Description:       req.Description,
		DeviceID:          req.DeviceID,
		Device:            req.Device,
		PreferredDelivery: preferred,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	// The ticket is the durable unit of success: assignment is best
	// effort and its failure must not fail the creation.
	technicianID := ""
	if req.AutoAssign == nil || *req.AutoAssign {
		techID, err := h.tickets.AutoAssign(r.Context(), created.ID, created.CreatedBy)
		switch {
		case errors.Is(err, ticket.ErrNoTechnicians):
			// leave unassigned
		case err != nil:
			log.Printf("auto-assign ticket %s: %v", created.ID, err)
		default:
			technicianID = techID
		}
	}

	resp := map[string]interface{}{
		"id":           created.ID,
		"message":      "Ticket created",
		"ticketNumber": created.TicketNumber,
	}
	if technicianID != "" {
		resp["technicianId"] = technicianID
	}
	jsonOK(w, http.StatusOK, resp)
}

// GetTicket returns one ticket.
// GET /api/tickets/{id}
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.tickets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, t)
}

// UpdateTicketStatus moves a ticket along its lifecycle.
// POST /api/tickets/{id}/status
func (h *Handler) UpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status    models.Status `json:"status"`
		ChangedBy string        `json:"changedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		jsonError(w, "status is required", http.StatusBadRequest)
		return
	}

	t, err := h.tickets.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, actorID(r, req.ChangedBy))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, t)
}

// AssignTicket sets the ticket's technician directly.
// POST /api/tickets/{id}/assign
func (h *Handler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TechnicianID string `json:"technicianId"`
		AssignedBy   string `json:"assignedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.tickets.Assign(r.Context(), chi.URLParam(r, "id"), req.TechnicianID, actorID(r, req.AssignedBy))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, t)
}

// ReassignTicket swaps the technician, recording the swap. Manager only.
// POST /api/tickets/{id}/reassign
func (h *Handler) ReassignTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TechnicianID string `json:"technicianId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.tickets.Reassign(r.Context(), chi.URLParam(r, "id"), req.TechnicianID, actorID(r, ""))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, t)
}

// --- Notes ---

// ListNotes returns the ticket's notes.
// GET /api/tickets/{id}/notes
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.tickets.Notes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

// AddNote appends a note to the ticket.
// POST /api/tickets/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    string `json:"content"`
		AuthorID   string `json:"authorId"`
		AuthorName string `json:"authorName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.tickets.AddNote(r.Context(), chi.URLParam(r, "id"), req.Content, actorID(r, req.AuthorID), req.AuthorName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, note)
}

// --- Parts ---

// ListParts returns the ticket's parts.
// GET /api/tickets/{id}/parts
func (h *Handler) ListParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.tickets.Parts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"ticketParts": parts})
}

// AddPart attaches a part to the ticket.
// POST /api/tickets/{id}/parts
func (h *Handler) AddPart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type         models.PartType   `json:"type"`
		Description  string            `json:"description"`
		SKU          string            `json:"sku"`
		Manufacturer string            `json:"manufacturer"`
		UnitPrice    float64           `json:"unitPrice"`
		Quantity     int               `json:"quantity"`
		Status       models.PartStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	part, err := h.tickets.AddPart(r.Context(), chi.URLParam(r, "id"), ticket.PartInput{
		Type:         req.Type,
		Description:  req.Description,
		SKU:          req.SKU,
		Manufacturer: req.Manufacturer,
		UnitPrice:    req.UnitPrice,
		Quantity:     req.Quantity,
		Status:       req.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, part)
}

// RemovePart deletes one part from the ticket.
// DELETE /api/tickets/{id}/parts/{partID}
func (h *Handler) RemovePart(w http.ResponseWriter, r *http.Request) {
	err := h.tickets.RemovePart(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "partID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePartStatus moves a part through procurement.
// POST /api/tickets/{id}/parts/{partID}/status
func (h *Handler) UpdatePartStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.PartStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	part, err := h.tickets.UpdatePartStatus(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "partID"), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, part)
}

// --- Images ---

// ListImages returns the images stored for the ticket.
// GET /api/tickets/{id}/images
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	imgs, err := h.images.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"images": imgs})
}

// UploadImage stores a photo for the ticket and records it on the ticket
// document. Multipart field name: "file".
// POST /api/tickets/{id}/images
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	if _, err := h.tickets.Get(r.Context(), ticketID); err != nil {
		h.writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(2 * 1024 * 1024); err != nil {
		jsonError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, images.MaxSize+1))
	if err != nil {
		jsonError(w, "read file", http.StatusBadRequest)
		return
	}

	img, err := h.images.Upload(r.Context(), ticketID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// The upload is durable even if recording it on the ticket fails;
	// the image list endpoint reads the bucket, not the document.
	if err := h.tickets.AttachImage(r.Context(), ticketID, img); err != nil {
		log.Printf("record image on ticket %s: %v", ticketID, err)
	}
	jsonOK(w, http.StatusCreated, img)
}

// DeleteImage removes a stored photo.
// DELETE /api/tickets/{id}/images/{filename}
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	path := "tickets/" + ticketID + "/" + chi.URLParam(r, "filename")

	if err := h.images.Delete(r.Context(), path); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.tickets.DetachImage(r.Context(), ticketID, path); err != nil {
		log.Printf("detach image from ticket %s: %v", ticketID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// TicketReport returns the printable, ASCII-folded snapshot the PDF
// renderer consumes.
// GET /api/tickets/{id}/report
func (h *Handler) TicketReport(w http.ResponseWriter, r *http.Request) {
	t, err := h.tickets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var client, technician *models.User
	if t.ClientID != "" {
		if u, err := h.store.GetUser(r.Context(), t.ClientID); err == nil {
			client = u
		}
	}
	if t.TechnicianID != "" {
		if u, err := h.store.GetUser(r.Context(), t.TechnicianID); err == nil {
			technician = u
		}
	}
	jsonOK(w, http.StatusOK, report.BuildSnapshot(t, client, technician))
}
