// Package store owns persistence for tickets, devices, and users.
//
// Two backends exist: Firestore (production) and an in-memory store used by
// tests and local development. Both give the same guarantee: every mutation
// of a ticket document is applied as a single transactional read-modify-write,
// so concurrent writers cannot lose each other's appends.
package store

import (
	"context"
	"errors"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// ErrNotFound is returned when an entity id does not resolve.
var ErrNotFound = errors.New("not found")

// TicketFilter narrows ListTickets. Zero-value fields match everything.
type TicketFilter struct {
	ClientID     string
	TechnicianID string
	DeviceID     string
	Status       models.Status
	OpenOnly     bool
}

// PickTechnician selects a technician id from a snapshot of open tickets
// and available technicians. It runs inside the assignment transaction, so
// the snapshot it sees is the one the assignment commits against.
type PickTechnician func(openTickets []models.Ticket, technicians []models.User) (string, bool)

// TicketStore persists tickets.
type TicketStore interface {
	// CreateTicket persists t, allocating its id and a monotonic
	// TicketNumber, and appends the new ticket id to the linked device's
	// repair history when t.DeviceID is set. All of that commits in one
	// transaction.
	CreateTicket(ctx context.Context, t *models.Ticket) (string, error)
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	// ListTickets returns tickets matching f ordered by creation time,
	// newest first.
	ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, error)
	// UpdateTicket applies mutate to the current document state inside a
	// transaction and persists the result. If mutate returns an error the
	// ticket is left untouched and the error is returned verbatim.
	UpdateTicket(ctx context.Context, id string, mutate func(*models.Ticket) error) (*models.Ticket, error)
	// AssignLeastLoaded atomically runs pick over the open-ticket and
	// technician snapshots and records the assignment on the ticket.
	// Returns the chosen technician id, or ("", nil) with no write when
	// pick finds no candidate.
	AssignLeastLoaded(ctx context.Context, ticketID, assignedBy string, pick PickTechnician) (string, error)
}

// DeviceStore persists devices.
type DeviceStore interface {
	CreateDevice(ctx context.Context, d *models.Device) (string, error)
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context, ownerID string) ([]models.Device, error)
	UpdateDevice(ctx context.Context, id string, mutate func(*models.Device) error) (*models.Device, error)
	// FindDeviceBySerial returns ErrNotFound when no device carries the
	// serial number.
	FindDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	Role       models.Role
	ActiveOnly bool
}

// UserStore persists user profiles. The UID is assigned by the caller:
// either the auth provider's uid, or a generated one for profile-only
// clients.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	UpdateUser(ctx context.Context, uid string, mutate func(*models.User) error) (*models.User, error)
	DeleteUser(ctx context.Context, uid string) error
}

// Store is the full persistence surface.
type Store interface {
	TicketStore
	DeviceStore
	UserStore
}

// matchTicket reports whether t passes f. Shared by both backends' list
// paths (the Firestore backend uses it for the filters the query API cannot
// express in one query).
func matchTicket(t *models.Ticket, f TicketFilter) bool {
	if f.ClientID != "" && t.ClientID != f.ClientID {
		return false
	}
	if f.TechnicianID != "" && t.TechnicianID != f.TechnicianID {
		return false
	}
	if f.DeviceID != "" && t.DeviceID != f.DeviceID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.OpenOnly && !t.Open() {
		return false
	}
	return true
}
