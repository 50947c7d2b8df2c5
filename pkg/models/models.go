package models

import "time"

// Role determines which views and operations a user may reach.
type Role string

const (
	RoleClient     Role = "client"
	RoleWorker     Role = "worker"
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleWorker, RoleTechnician, RoleManager:
		return true
	}
	return false
}

// User is a registered user profile. Clients created at the counter by a
// worker may have no authentication account behind them (HasAccount=false);
// their UID is generated locally instead of by the auth provider.
type User struct {
	UID        string    `json:"uid" firestore:"uid"`
	Email      string    `json:"email" firestore:"email"`
	FullName   string    `json:"fullName" firestore:"fullName"`
	Role       Role      `json:"role" firestore:"role"`
	Phone      string    `json:"phone" firestore:"phone"`
	Active     bool      `json:"active" firestore:"active"`
	HasAccount bool      `json:"hasAccount" firestore:"hasAccount"`
	CreatedBy  string    `json:"createdBy,omitempty" firestore:"createdBy"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}

// IsManager reports whether the user holds the manager role.
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// Device is a customer's piece of hardware. RepairHistory is a denormalized
// cache of ticket ids; the tickets collection is the authoritative record.
type Device struct {
	ID                 string     `json:"id" firestore:"-"`
	Brand              string     `json:"brand" firestore:"brand"`
	Model              string     `json:"model" firestore:"model"`
	SerialNumber       string     `json:"serialNumber" firestore:"serialNumber"`
	YearProduction     int        `json:"yearProduction" firestore:"yearProduction"`
	OwnerID            string     `json:"ownerId" firestore:"ownerId"`
	WarrantyStatus     string     `json:"warrantyStatus,omitempty" firestore:"warrantyStatus"`
	WarrantyExpireDate *time.Time `json:"warrantyExpireDate,omitempty" firestore:"warrantyExpireDate"`
	RepairHistory      []string   `json:"repairHistory" firestore:"repairHistory"`
	Photos             []string   `json:"photos" firestore:"photos"`
	CreatedAt          time.Time  `json:"createdAt" firestore:"createdAt"`
}

// Snapshot returns the denormalized identity copied onto tickets at
// creation time.
func (d *Device) Snapshot() DeviceSnapshot {
	return DeviceSnapshot{
		Brand:        d.Brand,
		Model:        d.Model,
		SerialNumber: d.SerialNumber,
		Year:         d.YearProduction,
	}
}
