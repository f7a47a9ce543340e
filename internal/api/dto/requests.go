package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
)

// RegisterRequest is the registration form
type RegisterRequest struct {
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone"`
	Role            profile.Role     `json:"role"`
	Vehicle         *profile.Vehicle `json:"vehicle,omitempty"`
	LicenseUploaded bool             `json:"license_uploaded"`
	IDUploaded      bool             `json:"id_uploaded"`
}

// VerificationRequest sets the outcome of a document review
type VerificationRequest struct {
	Status profile.VerificationStatus `json:"status" binding:"required"`
}

// PostRideRequest is a driver's ride offer
type PostRideRequest struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	Stops          []string        `json:"stops"`
	StartTime      time.Time       `json:"start_time"`
	AvailableSeats int             `json:"available_seats"`
	PricePerSeat   decimal.Decimal `json:"price_per_seat"`
}

// SuggestPriceRequest asks for a per-seat price
type SuggestPriceRequest struct {
	From      string    `json:"from" binding:"required"`
	To        string    `json:"to" binding:"required"`
	StartTime time.Time `json:"start_time"`
}

// CompleteRideRequest settles a ride for one rider
type CompleteRideRequest struct {
	RiderID string          `json:"rider_id"`
	Price   decimal.Decimal `json:"price"`
}

// OpenRequestRequest is a rider's trip with no ride attached
type OpenRequestRequest struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Stops []string `json:"stops"`
}

// AmountRequest moves funds in or out of a wallet
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SendMessageRequest posts a chat message
type SendMessageRequest struct {
	RideID        string `json:"ride_id"`
	ParticipantID string `json:"participant_id"`
	Text          string `json:"text"`
}

// RefineRequest asks for a polished version of a note
type RefineRequest struct {
	Text string `json:"text" binding:"required"`
}
