// Package ticket implements the ticket lifecycle: creation, status
// transitions, technician assignment, and the note/part/image attachments.
// All state lives in the store; the service holds nothing in memory.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// Service is the lifecycle manager.
type Service struct {
	store store.Store
}

// New creates a Service over st.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// CreateInput carries everything needed to register a ticket. Either
// DeviceID (existing device, snapshot captured from the record) or Device
// (inline snapshot) may be set; both empty is allowed for a bare
// description-only ticket.
type CreateInput struct {
	ClientID          string
	CreatedBy         string // defaults to ClientID
	Description       string
	DeviceID          string
	Device            *models.DeviceSnapshot
	PreferredDelivery *time.Time
	Images            []models.Image
}

// Create registers a new ticket with status Registered and a one-entry
// status history. The ticket number is allocated from the store's monotonic
// counter inside the creation transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Ticket, error) {
	if in.Description == "" {
		return nil, fmt.Errorf("%w: description", ErrMissingField)
	}
	if in.ClientID == "" {
		return nil, fmt.Errorf("%w: clientId", ErrMissingField)
	}

	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = in.ClientID
	}

	now := time.Now().UTC()
	t := &models.Ticket{
		ClientID:          in.ClientID,
		DeviceID:          in.DeviceID,
		CreatedBy:         createdBy,
		Description:       in.Description,
		Status:            models.StatusRegistered,
		PreferredDelivery: in.PreferredDelivery,
		Images:            in.Images,
		CreatedAt:         now,
		StatusHistory: []models.StatusChange{
			{Status: models.StatusRegistered, Timestamp: now, ChangedBy: createdBy},
		},
	}

	if in.DeviceID != "" {
		d, err := s.store.GetDevice(ctx, in.DeviceID)
		if err != nil {
			return nil, err
		}
		t.Device = d.Snapshot()
	} else if in.Device != nil {
		t.Device = *in.Device
	}

	if _, err := s.store.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, id string) (*models.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}

// List returns tickets matching f, newest first.
func (s *Service) List(ctx context.Context, f store.TicketFilter) ([]models.Ticket, error) {
	return s.store.ListTickets(ctx, f)
}

// Transition moves the ticket to newStatus and appends the change to the
// status history. Edges outside the allowed-next table are rejected with
// ErrInvalidTransition, including repeating the current status.
func (s *Service) Transition(ctx context.Context, id string, newStatus models.Status, actorID string) (*models.Ticket, error) {
	return s.store.UpdateTicket(ctx, id, func(t *models.Ticket) error {
		if err := checkTransition(t.Status, newStatus); err != nil {
			return err
		}
		t.Status = newStatus
		t.StatusHistory = append(t.StatusHistory, models.StatusChange{
			Status:    newStatus,
			Timestamp: time.Now().UTC(),
			ChangedBy: actorID,
		})
		return nil
	})
}

// Assign sets the ticket's technician directly. Unlike Reassign it records
// only assignedAt/assignedBy, no history entry.
func (s *Service) Assign(ctx context.Context, id, technicianID, assignedBy string) (*models.Ticket, error) {
	if technicianID == "" {
		return nil, fmt.Errorf("%w: technicianId", ErrMissingField)
	}
	return s.store.UpdateTicket(ctx, id, func(t *models.Ticket) error {
		now := time.Now().UTC()
		t.TechnicianID = technicianID
		t.AssignedAt = &now
		t.AssignedBy = assignedBy
		return nil
	})
}

// AutoAssign picks the least-loaded active technician and records the
// assignment. Selection and write commit in one store transaction, so two
// concurrent creations cannot both land on the same "least loaded" slot
// without the second seeing the first. Returns ErrNoTechnicians when no
// technician exists.
func (s *Service) AutoAssign(ctx context.Context, ticketID, assignedBy string) (string, error) {
	techID, err := s.store.AssignLeastLoaded(ctx, ticketID, assignedBy, LeastLoaded)
	if err != nil {
		return "", err
	}
	if techID == "" {
		return "", ErrNoTechnicians
	}
	return techID, nil
}

// Reassign swaps the ticket's technician and appends the swap to the
// reassignment history.
func (s *Service) Reassign(ctx context.Context, id, newTechnicianID, managerID string) (*models.Ticket, error) {
	if newTechnicianID == "" {
		return nil, fmt.Errorf("%w: technicianId", ErrMissingField)
	}
	return s.store.UpdateTicket(ctx, id, func(t *models.Ticket) error {
		now := time.Now().UTC()
		t.ReassignmentHistory = append(t.ReassignmentHistory, models.Reassignment{
			OldTechnicianID: t.TechnicianID,
			NewTechnicianID: newTechnicianID,
			ReassignedBy:    managerID,
			Timestamp:       now,
		})
		t.TechnicianID = newTechnicianID
		t.AssignedAt = &now
		t.AssignedBy = managerID
		return nil
	})
}

// --- Notes ---

// AddNote appends a note and returns it with its generated id.
func (s *Service) AddNote(ctx context.Context, ticketID, content, authorID, authorName string) (*models.Note, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content", ErrMissingField)
	}
	author := authorName
	if author == "" {
		author = authorID
	}
	note := models.Note{
		ID:        uuid.New().String(),
		Content:   content,
		Author:    author,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.store.UpdateTicket(ctx, ticketID, func(t *models.Ticket) error {
		t.Notes = append(t.Notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Notes returns the ticket's notes, never nil.
func (s *Service) Notes(ctx context.Context, ticketID string) ([]models.Note, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Notes == nil {
		return []models.Note{}, nil
	}
	return t.Notes, nil
}

// --- Parts ---

// PartInput describes a part to attach to a ticket.
type PartInput struct {
	Type         models.PartType
	Description  string
	SKU          string
	Manufacturer string
	UnitPrice    float64
	Quantity     int
	Status       models.PartStatus
}

// AddPart appends a part, defaulting quantity to 1 and status to ordered,
// and returns it with its generated id.
func (s *Service) AddPart(ctx context.Context, ticketID string, in PartInput) (*models.Part, error) {
	if in.Description == "" {
		return nil, fmt.Errorf("%w: description", ErrMissingField)
	}
	switch in.Type {
	case models.PartInstalled, models.PartRemoved, models.PartOrdered:
	default:
		return nil, fmt.Errorf("%w: unknown part type %q", ErrMissingField, in.Type)
	}

	part := models.Part{
		ID:           uuid.New().String(),
		Type:         in.Type,
		Description:  in.Description,
		SKU:          in.SKU,
		Manufacturer: in.Manufacturer,
		UnitPrice:    in.UnitPrice,
		Quantity:     in.Quantity,
		Status:       in.Status,
		AddedAt:      time.Now().UTC(),
	}
	if part.Quantity <= 0 {
		part.Quantity = 1
	}
	if part.Status == "" {
		part.Status = models.PartStatusOrdered
	}

	_, err := s.store.UpdateTicket(ctx, ticketID, func(t *models.Ticket) error {
		t.Parts = append(t.Parts, part)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// RemovePart deletes the part with partID, leaving the other parts
// untouched. Removing an id that is not present is a no-op.
func (s *Service) RemovePart(ctx context.Context, ticketID, partID string) error {
	_, err := s.store.UpdateTicket(ctx, ticketID, func(t *models.Ticket) error {
		kept := t.Parts[:0]
		for _, p := range t.Parts {
			if p.ID != partID {
				kept = append(kept, p)
			}
		}
		t.Parts = kept
		return nil
	})
	return err
}

// UpdatePartStatus sets the procurement status of one part.
func (s *Service) UpdatePartStatus(ctx context.Context, ticketID, partID string, newStatus models.PartStatus) (*models.Part, error) {
	switch newStatus {
	case models.PartStatusOrdered, models.PartStatusDelivered, models.PartStatusInstalled:
	default:
		return nil, fmt.Errorf("%w: unknown part status %q", ErrMissingField, newStatus)
	}

	var updated *models.Part
	_, err := s.store.UpdateTicket(ctx, ticketID, func(t *models.Ticket) error {
		for i := range t.Parts {
			if t.Parts[i].ID == partID {
				t.Parts[i].Status = newStatus
				p := t.Parts[i]
				updated = &p
				return nil
			}
		}
		return fmt.Errorf("part %s: %w", partID, store.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Parts returns the ticket's parts, never nil.
func (s *Service) Parts(ctx context.Context, ticketID string) ([]models.Part, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Parts == nil {
		return []models.Part{}, nil
	}
	return t.Parts, nil
}

// --- Images ---

// AttachImage records an uploaded image on the ticket.
func (s *Service) AttachImage(ctx context.Context, ticketID string, img models.Image) error {
	_, err := s.store.UpdateTicket(ctx, ticketID, func(t *models.Ticket) error {
		t.Images = append(t.Images, img)
		return nil
	})
	return err
}

// DetachImage removes the image stored at path from the ticket record.
func (s *Service) DetachImage(ctx context.Context, ticketID, path string) error {
	_, err := s.store.UpdateTicket(ctx, ticketID, func(t *models.Ticket) error {
		kept := t.Images[:0]
		for _, img := range t.Images {
			if img.Path != path {
				kept = append(kept, img)
			}
		}
		t.Images = kept
		return nil
	})
	return err
}

// --- Devices ---

// FindOrCreateDevice returns the id of the device with the given serial
// number, creating it for ownerID when none exists. Used by the worker
// intake flow where the client brings the device to the counter.
func (s *Service) FindOrCreateDevice(ctx context.Context, serial string, d models.Device, ownerID string) (string, error) {
	existing, err := s.store.FindDeviceBySerial(ctx, serial)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	d.SerialNumber = serial
	d.OwnerID = ownerID
	d.CreatedAt = time.Now().UTC()
	return s.store.CreateDevice(ctx, &d)
}

// DeviceRepairHistory returns the device's tickets, newest first, recomputed
// from the tickets collection. The denormalized repairHistory array on the
// device is a cache and can miss entries; the live query cannot.
func (s *Service) DeviceRepairHistory(ctx context.Context, deviceID string) ([]models.Ticket, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, store.TicketFilter{DeviceID: deviceID})
}
