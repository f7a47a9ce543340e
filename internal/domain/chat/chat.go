package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrNotParticipant = errors.New("user is not a participant of this thread")
)

// Message is one chat line
type Message struct {
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Thread is the conversation between a driver and one rider about a ride
// (or an open request). Messages are append-only.
type Thread struct {
	ID           string    `json:"id"`
	RideID       string    `json:"ride_id"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository defines thread persistence
type Repository interface {
	Get(ctx context.Context, id string) (*Thread, error)
	Save(ctx context.Context, t *Thread) error
}

// ThreadID derives the thread id from the ride (or open request) id and the
// non-driver participant, so repeated contact lands in one thread.
func ThreadID(rideID, participantID string) string {
	return rideID + "_" + participantID
}

// NewThread creates an empty thread between two users
func NewThread(rideID, driverID, participantID string) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:           ThreadID(rideID, participantID),
		RideID:       rideID,
		Participants: []string{driverID, participantID},
		Messages:     []Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasParticipant reports whether the user belongs to the thread
func (t *Thread) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Append adds a message from a participant
func (t *Thread) Append(senderID, senderName, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if !t.HasParticipant(senderID) {
		return Message{}, ErrNotParticipant
	}
	msg := Message{
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = msg.Timestamp
	return msg, nil
}
