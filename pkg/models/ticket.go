package models

import "time"

// Status is a ticket lifecycle state. The lifecycle is ordered; allowed
// transitions live in the ticket package.
type Status string

const (
	StatusRegistered      Status = "Registered"
	StatusReceived        Status = "Received"
	StatusDiagnosed       Status = "Diagnosed"
	StatusWaitingForParts Status = "Waiting for Parts"
	StatusRepairing       Status = "Repairing"
	StatusReady           Status = "Ready"
	StatusClosed          Status = "Closed"
)

// AllStatuses lists every lifecycle state in order.
var AllStatuses = []Status{
	StatusRegistered,
	StatusReceived,
	StatusDiagnosed,
	StatusWaitingForParts,
	StatusRepairing,
	StatusReady,
	StatusClosed,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PartType describes how a part relates to the repair.
type PartType string

const (
	PartInstalled PartType = "installed"
	PartRemoved   PartType = "removed"
	PartOrdered   PartType = "ordered"
)

// PartStatus tracks a part through procurement.
type PartStatus string

const (
	PartStatusOrdered   PartStatus = "ordered"
	PartStatusDelivered PartStatus = "delivered"
	PartStatusInstalled PartStatus = "installed"
)

// StatusChange is one entry in a ticket's append-only status history.
type StatusChange struct {
	Status    Status    `json:"status" firestore:"status"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	ChangedBy string    `json:"changedBy" firestore:"changedBy"`
}

// Reassignment records a technician swap ordered by a manager.
type Reassignment struct {
	OldTechnicianID string    `json:"oldTechnicianId" firestore:"oldTechnicianId"`
	NewTechnicianID string    `json:"newTechnicianId" firestore:"newTechnicianId"`
	ReassignedBy    string    `json:"reassignedBy" firestore:"reassignedBy"`
	Timestamp       time.Time `json:"timestamp" firestore:"timestamp"`
}

// Note is a free-form comment attached to a ticket.
type Note struct {
	ID        string    `json:"id" firestore:"id"`
	Content   string    `json:"content" firestore:"content"`
	Author    string    `json:"author" firestore:"author"`
	AuthorID  string    `json:"authorId" firestore:"authorId"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Part is a spare part ordered for, installed in, or removed from a device.
type Part struct {
	ID           string     `json:"id" firestore:"id"`
	Type         PartType   `json:"type" firestore:"type"`
	Description  string     `json:"description" firestore:"description"`
	SKU          string     `json:"sku" firestore:"sku"`
	Manufacturer string     `json:"manufacturer" firestore:"manufacturer"`
	UnitPrice    float64    `json:"unitPrice" firestore:"unitPrice"`
	Quantity     int        `json:"quantity" firestore:"quantity"`
	Status       PartStatus `json:"status" firestore:"status"`
	AddedAt      time.Time  `json:"addedAt" firestore:"addedAt"`
}

// Image is a reference to an uploaded photo in object storage.
type Image struct {
	URL        string    `json:"url" firestore:"url"`
	Path       string    `json:"path" firestore:"path"`
	Filename   string    `json:"filename" firestore:"filename"`
	UploadedAt time.Time `json:"uploadedAt" firestore:"uploadedAt"`
}

// DeviceSnapshot is the device's identity as it was when the ticket was
// created. It is copied onto the ticket and never updated afterwards, so the
// paperwork stays accurate even if the Device record changes.
type DeviceSnapshot struct {
	Brand        string `json:"brand" firestore:"brand"`
	Model        string `json:"model" firestore:"model"`
	SerialNumber string `json:"serialNumber" firestore:"serialNumber"`
	Year         int    `json:"year" firestore:"year"`
}

// Ticket is one reported device fault and its repair lifecycle.
type Ticket struct {
	ID                  string         `json:"id" firestore:"-"`
	TicketNumber        string         `json:"ticketNumber" firestore:"ticketNumber"`
	ClientID            string         `json:"clientId" firestore:"clientId"`
	DeviceID            string         `json:"deviceId,omitempty" firestore:"deviceId"`
	TechnicianID        string         `json:"technicianId,omitempty" firestore:"technicianId"`
	CreatedBy           string         `json:"createdBy" firestore:"createdBy"`
	Description         string         `json:"description" firestore:"description"`
	Status              Status         `json:"status" firestore:"status"`
	Device              DeviceSnapshot `json:"device" firestore:"device"`
	PreferredDelivery   *time.Time     `json:"preferredDeliveryDate,omitempty" firestore:"preferredDeliveryDate"`
	StatusHistory       []StatusChange `json:"statusHistory" firestore:"statusHistory"`
	ReassignmentHistory []Reassignment `json:"reassignmentHistory,omitempty" firestore:"reassignmentHistory"`
	Notes               []Note         `json:"notes,omitempty" firestore:"notes"`
	Parts               []Part         `json:"ticketParts,omitempty" firestore:"ticketParts"`
	Images              []Image        `json:"images,omitempty" firestore:"images"`
	CreatedAt           time.Time      `json:"createdAt" firestore:"createdAt"`
	AssignedAt          *time.Time     `json:"assignedAt,omitempty" firestore:"assignedAt"`
	AssignedBy          string         `json:"assignedBy,omitempty" firestore:"assignedBy"`
}

// Open reports whether the ticket still counts toward a technician's load.
func (t *Ticket) Open() bool {
	return t.Status != StatusClosed
}
