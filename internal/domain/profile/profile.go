package profile

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role represents what a user does on the marketplace
type Role string

const (
	RoleDriver Role = "driver"
	RoleRider  Role = "rider"
)

// VerificationStatus tracks document review of a profile
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrRoleFixed       = errors.New("role cannot change after registration")
)

// Vehicle describes a driver's car
type Vehicle struct {
	Type  string `json:"type"`
	Color string `json:"color"`
	Plate string `json:"plate"`
}

// Profile is the registration record of a user
type Profile struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Phone              string             `json:"phone"`
	Role               Role               `json:"role"`
	Vehicle            *Vehicle           `json:"vehicle,omitempty"`
	LicenseUploaded    bool               `json:"license_uploaded"`
	IDUploaded         bool               `json:"id_uploaded"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Repository defines profile persistence
type Repository interface {
	// Get retrieves a profile by user id
	Get(ctx context.Context, id string) (*Profile, error)

	// Save creates or replaces a profile
	Save(ctx context.Context, p *Profile) error

	// UpdateVerification sets the verification status
	UpdateVerification(ctx context.Context, id string, status VerificationStatus) error
}

// IsValid validates the role
func (r Role) IsValid() bool {
	switch r {
	case RoleDriver, RoleRider:
		return true
	}
	return false
}

// IsValid validates the verification status
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// MissingFields returns every required field that is blank, in form order.
// Drivers must describe their vehicle and upload a license, riders an id.
func (p *Profile) MissingFields() []string {
	var missing []string
	if blank(p.Name) {
		missing = append(missing, "name")
	}
	if blank(p.Email) {
		missing = append(missing, "email")
	}
	if blank(p.Phone) {
		missing = append(missing, "phone")
	}
	if blank(string(p.Role)) {
		missing = append(missing, "role")
		return missing
	}
	if !p.Role.IsValid() {
		return append(missing, "role")
	}

	switch p.Role {
	case RoleDriver:
		v := p.Vehicle
		if v == nil {
			v = &Vehicle{}
		}
		if blank(v.Type) {
			missing = append(missing, "vehicle.type")
		}
		if blank(v.Color) {
			missing = append(missing, "vehicle.color")
		}
		if blank(v.Plate) {
			missing = append(missing, "vehicle.plate")
		}
		if !p.LicenseUploaded {
			missing = append(missing, "license_uploaded")
		}
	case RoleRider:
		if !p.IDUploaded {
			missing = append(missing, "id_uploaded")
		}
	}
	return missing
}

// Normalize trims user input and drops vehicle data from riders
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Role != RoleDriver {
		p.Vehicle = nil
		p.LicenseUploaded = false
		return
	}
	if p.Vehicle != nil {
		p.Vehicle.Type = strings.TrimSpace(p.Vehicle.Type)
		p.Vehicle.Color = strings.TrimSpace(p.Vehicle.Color)
		p.Vehicle.Plate = strings.TrimSpace(p.Vehicle.Plate)
	}
}

// IsDriver reports whether the profile belongs to a driver
func (p *Profile) IsDriver() bool {
	return p != nil && p.Role == RoleDriver
}

// IsRider reports whether the profile belongs to a rider
func (p *Profile) IsRider() bool {
	return p != nil && p.Role == RoleRider
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
