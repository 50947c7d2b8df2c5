package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// TicketNumber formats a human-readable ticket number from the creation
// year and a per-year monotonic sequence.
func TicketNumber(year int, seq int64) string {
	return fmt.Sprintf("TKT-%d-%d", year, seq)
}

// Memory is an in-memory Store. It backs tests and the memory dev backend.
// A single mutex covers all collections so cross-collection operations
// (ticket creation with device linking, select-and-assign) are atomic, the
// same way the Firestore backend runs them in one transaction.
type Memory struct {
	mu      sync.RWMutex
	tickets map[string]*models.Ticket
	devices map[string]*models.Device
	users   map[string]*models.User
	seq     map[int]int64 // ticket sequence per creation year
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tickets: make(map[string]*models.Ticket),
		devices: make(map[string]*models.Device),
		users:   make(map[string]*models.User),
		seq:     make(map[int]int64),
	}
}

var _ Store = (*Memory)(nil)

// --- Ticket operations ---

func (m *Memory) CreateTicket(ctx context.Context, t *models.Ticket) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.DeviceID != "" {
		if _, ok := m.devices[t.DeviceID]; !ok {
			return "", fmt.Errorf("device %s: %w", t.DeviceID, ErrNotFound)
		}
	}

	year := t.CreatedAt.Year()
	m.seq[year]++
	t.TicketNumber = TicketNumber(year, m.seq[year])

	id := uuid.New().String()
	t.ID = id
	clone := cloneTicket(t)
	m.tickets[id] = clone

	if t.DeviceID != "" {
		d := m.devices[t.DeviceID]
		d.RepairHistory = append(d.RepairHistory, id)
	}
	return id, nil
}

func (m *Memory) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	return cloneTicket(t), nil
}

func (m *Memory) ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Ticket
	for _, t := range m.tickets {
		if matchTicket(t, f) {
			out = append(out, *cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateTicket(ctx context.Context, id string, mutate func(*models.Ticket) error) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	work := cloneTicket(t)
	if err := mutate(work); err != nil {
		return nil, err
	}
	work.ID = id
	m.tickets[id] = work
	return cloneTicket(work), nil
}

func (m *Memory) AssignLeastLoaded(ctx context.Context, ticketID, assignedBy string, pick PickTechnician) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return "", fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
	}

	var open []models.Ticket
	for _, other := range m.tickets {
		if other.Open() {
			open = append(open, *cloneTicket(other))
		}
	}
	var technicians []models.User
	for _, u := range m.users {
		if u.Role == models.RoleTechnician && u.Active {
			technicians = append(technicians, *u)
		}
	}

	techID, ok := pick(open, technicians)
	if !ok {
		return "", nil
	}

	now := time.Now().UTC()
	t.TechnicianID = techID
	t.AssignedAt = &now
	t.AssignedBy = assignedBy
	return techID, nil
}

// --- Device operations ---

func (m *Memory) CreateDevice(ctx context.Context, d *models.Device) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	d.ID = id
	if d.RepairHistory == nil {
		d.RepairHistory = []string{}
	}
	if d.Photos == nil {
		d.Photos = []string{}
	}
	m.devices[id] = cloneDevice(d)
	return id, nil
}

func (m *Memory) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return cloneDevice(d), nil
}

func (m *Memory) ListDevices(ctx context.Context, ownerID string) ([]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Device
	for _, d := range m.devices {
		if ownerID == "" || d.OwnerID == ownerID {
			out = append(out, *cloneDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateDevice(ctx context.Context, id string, mutate func(*models.Device) error) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	work := cloneDevice(d)
	if err := mutate(work); err != nil {
		return nil, err
	}
	work.ID = id
	m.devices[id] = work
	return cloneDevice(work), nil
}

func (m *Memory) FindDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.devices {
		if d.SerialNumber == serial {
			return cloneDevice(d), nil
		}
	}
	return nil, fmt.Errorf("device serial %s: %w", serial, ErrNotFound)
}

// --- User operations ---

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.UID == "" {
		return fmt.Errorf("user uid is required")
	}
	clone := *u
	m.users[u.UID] = &clone
	return nil
}

func (m *Memory) GetUser(ctx context.Context, uid string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (m *Memory) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.User
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.ActiveOnly && !u.Active {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func (m *Memory) UpdateUser(ctx context.Context, uid string, mutate func(*models.User) error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	work := *u
	if err := mutate(&work); err != nil {
		return nil, err
	}
	work.UID = uid
	m.users[uid] = &work
	clone := work
	return &clone, nil
}

func (m *Memory) DeleteUser(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[uid]; !ok {
		return fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	delete(m.users, uid)
	return nil
}

// --- clones ---

// cloneTicket deep-copies the slice fields so callers can't mutate stored
// state outside the lock.
func cloneTicket(t *models.Ticket) *models.Ticket {
	c := *t
	c.StatusHistory = append([]models.StatusChange(nil), t.StatusHistory...)
	c.ReassignmentHistory = append([]models.Reassignment(nil), t.ReassignmentHistory...)
	c.Notes = append([]models.Note(nil), t.Notes...)
	c.Parts = append([]models.Part(nil), t.Parts...)
	c.Images = append([]models.Image(nil), t.Images...)
	return &c
}

func cloneDevice(d *models.Device) *models.Device {
	c := *d
	c.RepairHistory = append([]string(nil), d.RepairHistory...)
	c.Photos = append([]string(nil), d.Photos...)
	return &c
}
