package ride

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
)

// Status represents ride status
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Errors
var (
	ErrRideNotFound = errors.New("ride not found")
	ErrNoSeats      = errors.New("no seats available")
	ErrNotActive    = errors.New("ride is not active")
)

// Ride is a driver's offer to carry riders along a route
type Ride struct {
	ID             string           `json:"id"`
	DriverID       string           `json:"driver_id"`
	DriverName     string           `json:"driver_name"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	Stops          []string         `json:"stops,omitempty"`
	Route          []string         `json:"route"`
	StartTime      time.Time        `json:"start_time"`
	AvailableSeats int              `json:"available_seats"`
	PricePerSeat   decimal.Decimal  `json:"price_per_seat"`
	Status         Status           `json:"status"`
	Vehicle        *profile.Vehicle `json:"vehicle,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Draft is what a driver submits when posting a ride
type Draft struct {
	From           string
	To             string
	Stops          []string
	StartTime      time.Time
	AvailableSeats int
	PricePerSeat   decimal.Decimal
}

// Repository interface
type Repository interface {
	Create(ctx context.Context, r *Ride) error
	GetByID(ctx context.Context, id string) (*Ride, error)
	Update(ctx context.Context, r *Ride) error
	ListActive(ctx context.Context) ([]*Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]*Ride, error)
}

// MissingFields lists required draft fields that are absent or out of range.
// The price is checked as stored, rounded to cents.
func (d Draft) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(d.From) == "" {
		missing = append(missing, "from")
	}
	if strings.TrimSpace(d.To) == "" {
		missing = append(missing, "to")
	}
	if d.StartTime.IsZero() {
		missing = append(missing, "start_time")
	}
	if d.AvailableSeats < 1 {
		missing = append(missing, "available_seats")
	}
	if !d.PricePerSeat.Round(2).IsPositive() {
		missing = append(missing, "price_per_seat")
	}
	return missing
}

// BuildRoute returns [from, stops..., to], skipping blank stops
func BuildRoute(from, to string, stops []string) []string {
	route := make([]string, 0, len(stops)+2)
	route = append(route, strings.TrimSpace(from))
	for _, s := range stops {
		if s = strings.TrimSpace(s); s != "" {
			route = append(route, s)
		}
	}
	return append(route, strings.TrimSpace(to))
}

// CleanStops trims stops and drops blanks
func CleanStops(stops []string) []string {
	var out []string
	for _, s := range stops {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsActive reports whether the ride still takes bookings
func (r *Ride) IsActive() bool {
	return r.Status == StatusActive
}

// HasSeats reports whether at least one seat is free
func (r *Ride) HasSeats() bool {
	return r.AvailableSeats > 0
}

// TakeSeat decrements the seat count by one; it never goes negative
func (r *Ride) TakeSeat() error {
	if !r.IsActive() {
		return ErrNotActive
	}
	if !r.HasSeats() {
		return ErrNoSeats
	}
	r.AvailableSeats--
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the ride as completed
func (r *Ride) Complete() {
	r.Status = StatusCompleted
	r.UpdatedAt = time.Now().UTC()
}
