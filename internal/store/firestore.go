package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

const (
	ticketsCollection  = "tickets"
	devicesCollection  = "devices"
	usersCollection    = "users"
	countersCollection = "counters"
	ticketCounterDoc   = "tickets"
)

// Firestore is the production Store over a Firestore database with
// collections `tickets`, `devices`, `users`, and `counters`.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore wraps an initialized Firestore client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

var _ Store = (*Firestore)(nil)

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// --- Ticket operations ---

// CreateTicket allocates the per-year sequence from counters/tickets,
// writes the ticket, and appends its id to the linked device's repair
// history, all in one transaction. Transactions require reads before
// writes, so the counter and device are read up front.
func (s *Firestore) CreateTicket(ctx context.Context, t *models.Ticket) (string, error) {
	ref := s.client.Collection(ticketsCollection).NewDoc()
	counterRef := s.client.Collection(countersCollection).Doc(ticketCounterDoc)
	year := t.CreatedAt.Year()
	yearKey := strconv.Itoa(year)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var seq int64
		counterSnap, err := tx.Get(counterRef)
		switch {
		case isNotFound(err):
			seq = 0
		case err != nil:
			return fmt.Errorf("read ticket counter: %w", err)
		default:
			if v, ok := counterSnap.Data()[yearKey]; ok {
				n, ok := v.(int64)
				if !ok {
					return fmt.Errorf("ticket counter %s has non-integer value %v", yearKey, v)
				}
				seq = n
			}
		}
		seq++

		var deviceRef *firestore.DocumentRef
		var device models.Device
		if t.DeviceID != "" {
			deviceRef = s.client.Collection(devicesCollection).Doc(t.DeviceID)
			snap, err := tx.Get(deviceRef)
			if isNotFound(err) {
				return fmt.Errorf("device %s: %w", t.DeviceID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("read device: %w", err)
			}
			if err := snap.DataTo(&device); err != nil {
				return fmt.Errorf("decode device: %w", err)
			}
		}

		t.TicketNumber = TicketNumber(year, seq)
		if err := tx.Set(counterRef, map[string]interface{}{yearKey: seq}, firestore.MergeAll); err != nil {
			return fmt.Errorf("write ticket counter: %w", err)
		}
		if err := tx.Set(ref, t); err != nil {
			return fmt.Errorf("write ticket: %w", err)
		}
		if deviceRef != nil {
			history := append(device.RepairHistory, ref.ID)
			if err := tx.Update(deviceRef, []firestore.Update{
				{Path: "repairHistory", Value: history},
			}); err != nil {
				return fmt.Errorf("link ticket to device: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	t.ID = ref.ID
	return ref.ID, nil
}

func (s *Firestore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	snap, err := s.client.Collection(ticketsCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return decodeTicket(snap)
}

// ListTickets pushes equality filters into the query and applies the
// remaining filters client-side. Combining an inequality on status with an
// order on createdAt needs composite indexes Firestore cannot build
// implicitly, so OpenOnly filtering stays on this side.
func (s *Firestore) ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	q := s.client.Collection(ticketsCollection).Query
	if f.ClientID != "" {
		q = q.Where("clientId", "==", f.ClientID)
	}
	if f.TechnicianID != "" {
		q = q.Where("technicianId", "==", f.TechnicianID)
	}
	if f.DeviceID != "" {
		q = q.Where("deviceId", "==", f.DeviceID)
	}
	q = q.OrderBy("createdAt", firestore.Desc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []models.Ticket
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		t, err := decodeTicket(snap)
		if err != nil {
			return nil, err
		}
		if matchTicket(t, f) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Firestore) UpdateTicket(ctx context.Context, id string, mutate func(*models.Ticket) error) (*models.Ticket, error) {
	ref := s.client.Collection(ticketsCollection).Doc(id)
	var updated *models.Ticket

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("ticket %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read ticket: %w", err)
		}
		t, err := decodeTicket(snap)
		if err != nil {
			return err
		}
		if err := mutate(t); err != nil {
			return err
		}
		updated = t
		return tx.Set(ref, t)
	})
	if err != nil {
		return nil, err
	}
	updated.ID = id
	return updated, nil
}

func (s *Firestore) AssignLeastLoaded(ctx context.Context, ticketID, assignedBy string, pick PickTechnician) (string, error) {
	ref := s.client.Collection(ticketsCollection).Doc(ticketID)
	var chosen string

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chosen = ""
		if _, err := tx.Get(ref); isNotFound(err) {
			return fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("read ticket: %w", err)
		}

		openQuery := s.client.Collection(ticketsCollection).
			Where("status", "!=", string(models.StatusClosed))
		open, err := collectTickets(tx.Documents(openQuery))
		if err != nil {
			return fmt.Errorf("read open tickets: %w", err)
		}

		techQuery := s.client.Collection(usersCollection).
			Where("role", "==", string(models.RoleTechnician)).
			Where("active", "==", true)
		technicians, err := collectUsers(tx.Documents(techQuery))
		if err != nil {
			return fmt.Errorf("read technicians: %w", err)
		}

		techID, ok := pick(open, technicians)
		if !ok {
			return nil
		}
		chosen = techID
		return tx.Update(ref, []firestore.Update{
			{Path: "technicianId", Value: techID},
			{Path: "assignedAt", Value: time.Now().UTC()},
			{Path: "assignedBy", Value: assignedBy},
		})
	})
	if err != nil {
		return "", err
	}
	return chosen, nil
}

// --- Device operations ---

func (s *Firestore) CreateDevice(ctx context.Context, d *models.Device) (string, error) {
	if d.RepairHistory == nil {
		d.RepairHistory = []string{}
	}
	if d.Photos == nil {
		d.Photos = []string{}
	}
	ref := s.client.Collection(devicesCollection).NewDoc()
	if _, err := ref.Set(ctx, d); err != nil {
		return "", fmt.Errorf("create device: %w", err)
	}
	d.ID = ref.ID
	return ref.ID, nil
}

func (s *Firestore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	snap, err := s.client.Collection(devicesCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return decodeDevice(snap)
}

func (s *Firestore) ListDevices(ctx context.Context, ownerID string) ([]models.Device, error) {
	q := s.client.Collection(devicesCollection).Query
	if ownerID != "" {
		q = q.Where("ownerId", "==", ownerID)
	}
	q = q.OrderBy("createdAt", firestore.Desc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []models.Device
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		d, err := decodeDevice(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *Firestore) UpdateDevice(ctx context.Context, id string, mutate func(*models.Device) error) (*models.Device, error) {
	ref := s.client.Collection(devicesCollection).Doc(id)
	var updated *models.Device

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read device: %w", err)
		}
		d, err := decodeDevice(snap)
		if err != nil {
			return err
		}
		if err := mutate(d); err != nil {
			return err
		}
		updated = d
		return tx.Set(ref, d)
	})
	if err != nil {
		return nil, err
	}
	updated.ID = id
	return updated, nil
}

func (s *Firestore) FindDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	iter := s.client.Collection(devicesCollection).
		Where("serialNumber", "==", serial).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("device serial %s: %w", serial, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find device by serial: %w", err)
	}
	return decodeDevice(snap)
}

// --- User operations ---

func (s *Firestore) CreateUser(ctx context.Context, u *models.User) error {
	if u.UID == "" {
		return fmt.Errorf("user uid is required")
	}
	if _, err := s.client.Collection(usersCollection).Doc(u.UID).Set(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Firestore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *Firestore) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := s.client.Collection(usersCollection).Query
	if f.Role != "" {
		q = q.Where("role", "==", string(f.Role))
	}
	if f.ActiveOnly {
		q = q.Where("active", "==", true)
	}

	users, err := collectUsers(q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Firestore) UpdateUser(ctx context.Context, uid string, mutate func(*models.User) error) (*models.User, error) {
	ref := s.client.Collection(usersCollection).Doc(uid)
	var updated *models.User

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("user %s: %w", uid, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read user: %w", err)
		}
		var u models.User
		if err := snap.DataTo(&u); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		if err := mutate(&u); err != nil {
			return err
		}
		u.UID = uid
		updated = &u
		return tx.Set(ref, &u)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Firestore) DeleteUser(ctx context.Context, uid string) error {
	ref := s.client.Collection(usersCollection).Doc(uid)
	if _, err := ref.Get(ctx); isNotFound(err) {
		return fmt.Errorf("user %s: %w", uid, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("read user: %w", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// --- decoding helpers ---

func decodeTicket(snap *firestore.DocumentSnapshot) (*models.Ticket, error) {
	var t models.Ticket
	if err := snap.DataTo(&t); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", snap.Ref.ID, err)
	}
	t.ID = snap.Ref.ID
	return &t, nil
}

func decodeDevice(snap *firestore.DocumentSnapshot) (*models.Device, error) {
	var d models.Device
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode device %s: %w", snap.Ref.ID, err)
	}
	d.ID = snap.Ref.ID
	return &d, nil
}

func collectTickets(iter *firestore.DocumentIterator) ([]models.Ticket, error) {
	defer iter.Stop()
	var out []models.Ticket
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		t, err := decodeTicket(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
}

func collectUsers(iter *firestore.DocumentIterator) ([]models.User, error) {
	defer iter.Stop()
	var out []models.User
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var u models.User
		if err := snap.DataTo(&u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
		}
		out = append(out, u)
	}
}
