package request

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a ride request
type Status string

const (
	StatusSearching Status = "searching"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrRequestNotFound   = errors.New("request not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// transitions lists every allowed move. Everything else is rejected, so
// terminal states have no entry.
var transitions = map[Status][]Status{
	StatusSearching: {StatusCancelled},
	StatusPending:   {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:  {StatusCompleted},
}

// Request is a rider's booking against a ride, or an open request with no
// ride yet (RideID empty, status searching)
type Request struct {
	ID          string          `json:"id"`
	RideID      string          `json:"ride_id"`
	RiderID     string          `json:"rider_id"`
	RiderName   string          `json:"rider_name"`
	DriverID    string          `json:"driver_id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Route       []string        `json:"route"`
	Status      Status          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	ContactedBy []string        `json:"contacted_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Repository defines request persistence
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	Update(ctx context.Context, r *Request) error
	ListByRide(ctx context.Context, rideID string) ([]*Request, error)
	ListByRider(ctx context.Context, riderID string) ([]*Request, error)
	ListByDriver(ctx context.Context, driverID string) ([]*Request, error)
	ListOpen(ctx context.Context) ([]*Request, error)
}

// IsOpen reports whether this is an open search with no ride attached
func (r *Request) IsOpen() bool {
	return r.RideID == ""
}

// IsActive reports whether the status still counts as live
func (s Status) IsActive() bool {
	switch s {
	case StatusSearching, StatusPending, StatusAccepted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the move is allowed
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the request to a new status
func (r *Request) Transition(to Status) error {
	if !r.Status.CanTransition(to) {
		return ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Blocks reports whether this request prevents the same rider from booking
// the same ride again
func (r *Request) Blocks(rideID, riderID string) bool {
	return r.RideID == rideID && r.RiderID == riderID &&
		(r.Status == StatusPending || r.Status == StatusAccepted)
}

// WasContactedBy reports whether the user already opened a chat on this open request
func (r *Request) WasContactedBy(userID string) bool {
	for _, id := range r.ContactedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkContacted records a driver opening a chat on this open request
func (r *Request) MarkContacted(userID string) bool {
	if r.WasContactedBy(userID) {
		return false
	}
	r.ContactedBy = append(r.ContactedBy, userID)
	r.UpdatedAt = time.Now().UTC()
	return true
}
