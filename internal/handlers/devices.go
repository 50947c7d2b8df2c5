package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// ListDevices returns all registered devices.
// GET /api/devices?ownerId=
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListDevices(r.Context(), r.URL.Query().Get("ownerId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// CreateDevice registers a device.
// POST /api/devices
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var d models.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if d.Brand == "" && d.Model == "" {
		jsonError(w, "brand or model is required", http.StatusBadRequest)
		return
	}
	d.CreatedAt = time.Now().UTC()

	id, err := h.store.CreateDevice(r.Context(), &d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, map[string]string{"id": id, "message": "Device created"})
}

type findOrCreateDeviceReq struct {
	SerialNumber string        `json:"serialNumber"`
	OwnerID      string        `json:"ownerId"`
	Device       models.Device `json:"device"`
}

// FindOrCreateDevice returns the device matching the serial number,
// creating it when no match exists. New tickets use this to link devices
// without the client knowing whether the device was seen before.
// POST /api/devices/find-or-create
func (h *Handler) FindOrCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req findOrCreateDeviceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SerialNumber == "" {
		jsonError(w, "serialNumber is required", http.StatusBadRequest)
		return
	}

	req.Device.SerialNumber = req.SerialNumber
	id, err := h.tickets.FindOrCreateDevice(r.Context(), req.SerialNumber, req.Device, req.OwnerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]string{"id": id})
}

// GetDevice returns one device.
// GET /api/devices/{id}
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, d)
}

// UpdateDevice applies a partial update to a device.
// PATCH /api/devices/{id}
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Brand              *string    `json:"brand"`
		Model              *string    `json:"model"`
		SerialNumber       *string    `json:"serialNumber"`
		YearProduction     *int       `json:"yearProduction"`
		OwnerID            *string    `json:"ownerId"`
		WarrantyStatus     *string    `json:"warrantyStatus"`
		WarrantyExpireDate *time.Time `json:"warrantyExpireDate"`
		Photos             []string   `json:"photos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.store.UpdateDevice(r.Context(), chi.URLParam(r, "id"), func(d *models.Device) error {
		if req.Brand != nil {
			d.Brand = *req.Brand
		}
		if req.Model != nil {
			d.Model = *req.Model
		}
		if req.SerialNumber != nil {
			d.SerialNumber = *req.SerialNumber
		}
		if req.YearProduction != nil {
			d.YearProduction = *req.YearProduction
		}
		if req.OwnerID != nil {
			d.OwnerID = *req.OwnerID
		}
		if req.WarrantyStatus != nil {
			d.WarrantyStatus = *req.WarrantyStatus
		}
		if req.WarrantyExpireDate != nil {
			d.WarrantyExpireDate = req.WarrantyExpireDate
		}
		if req.Photos != nil {
			d.Photos = req.Photos
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, d)
}

// DeviceHistory returns every ticket ever opened for the device, newest
// first. Computed from the tickets collection, not the cached list on the
// device document.
// GET /api/devices/{id}/history
func (h *Handler) DeviceHistory(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.DeviceRepairHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}
