package marketplace

import (
	"context"
	"errors"
	"strings"

	"github.com/developerashishcanada/carpoolreact/internal/domain/chat"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/repository"
	"github.com/developerashishcanada/carpoolreact/internal/view"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// SendInput addresses a message. RideID is a ride id, or the id of an open
// request. ParticipantID is the non-driver side of a ride thread and the
// contacting driver of an open-request thread; it defaults to the caller.
type SendInput struct {
	RideID        string
	ParticipantID string
	Text          string
}

// SendMessage appends a message to the thread of (RideID, ParticipantID),
// creating the thread on first contact. A driver's first message on an open
// request is recorded on the request so both sides see the chat in their
// lists.
func (s *Service) SendMessage(ctx context.Context, caller Caller, in SendInput) (*chat.Thread, error) {
	if err := requireRegistered(caller); err != nil {
		return nil, s.fail("send_message", err)
	}
	text := strings.TrimSpace(in.Text)
	var missing []string
	if strings.TrimSpace(in.RideID) == "" {
		missing = append(missing, "ride_id")
	}
	if text == "" {
		missing = append(missing, "text")
	}
	if len(missing) > 0 {
		return nil, s.fail("send_message", apperrors.Validation("Missing required fields", missing...))
	}
	participantID := strings.TrimSpace(in.ParticipantID)
	if participantID == "" {
		participantID = caller.ID
	}

	var thread *chat.Thread
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		owner, contacted, err := s.resolveThread(ctx, repos, caller, in.RideID, participantID)
		if err != nil {
			return err
		}

		thread, err = repos.Chats.Get(ctx, chat.ThreadID(in.RideID, participantID))
		if errors.Is(err, chat.ErrThreadNotFound) {
			thread = chat.NewThread(in.RideID, owner, participantID)
		} else if err != nil {
			return err
		}

		if _, err := thread.Append(caller.ID, caller.Name(), text); err != nil {
			return err
		}
		if err := repos.Chats.Save(ctx, thread); err != nil {
			return err
		}
		if contacted != nil {
			return repos.Requests.Update(ctx, contacted)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("send_message", err)
	}

	s.logger.Info("Message sent",
		logger.String("thread_id", thread.ID),
		logger.String("sender_id", caller.ID),
		logger.Int("messages", len(thread.Messages)),
	)
	s.publish(ctx, events.New(events.ChatMessage, thread.ID, caller.ID, map[string]interface{}{
		"ride_id": thread.RideID,
	}))
	return thread, nil
}

// resolveThread works out who owns the conversation and checks the caller
// may take part. For ride threads the owner is the driver; for open-request
// threads it is the rider who posted the request. When a driver opens a new
// open-request chat the updated request is returned for saving.
func (s *Service) resolveThread(ctx context.Context, repos *repository.Repositories, caller Caller, rideID, participantID string) (string, *request.Request, error) {
	rd, err := repos.Rides.GetByID(ctx, rideID)
	if err == nil {
		if participantID == rd.DriverID {
			return "", nil, apperrors.Validation("Participant must not be the driver", "participant_id")
		}
		if caller.ID != rd.DriverID && caller.ID != participantID {
			return "", nil, apperrors.ErrNotOwner
		}
		return rd.DriverID, nil, nil
	}
	if !errors.Is(err, ride.ErrRideNotFound) {
		return "", nil, err
	}

	req, err := repos.Requests.GetByID(ctx, rideID)
	if errors.Is(err, request.ErrRequestNotFound) {
		return "", nil, ride.ErrRideNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if !req.IsOpen() {
		return "", nil, ride.ErrRideNotFound
	}
	if participantID == req.RiderID {
		return "", nil, apperrors.Validation("Open request chats are addressed to the contacting driver", "participant_id")
	}
	if caller.ID != req.RiderID && caller.ID != participantID {
		return "", nil, apperrors.ErrNotOwner
	}

	if caller.ID == participantID && !req.WasContactedBy(participantID) {
		if !caller.Profile.IsDriver() {
			return "", nil, apperrors.ErrNotDriver
		}
		if req.Status != request.StatusSearching {
			return "", nil, apperrors.ErrInvalidTransition
		}
		req.MarkContacted(participantID)
		return req.RiderID, req, nil
	}
	if !req.WasContactedBy(participantID) {
		return "", nil, chat.ErrThreadNotFound
	}
	return req.RiderID, nil, nil
}

// Thread returns a conversation to one of its participants
func (s *Service) Thread(ctx context.Context, caller Caller, threadID string) (*chat.Thread, error) {
	t, err := s.repos.Chats.Get(ctx, threadID)
	if err != nil {
		return nil, s.fail("get_thread", err)
	}
	if !t.HasParticipant(caller.ID) {
		return nil, s.fail("get_thread", apperrors.ErrNotOwner)
	}
	return t, nil
}

// ChatList derives the caller's conversations from the request catalog:
// accepted requests on either side plus open requests with driver contact
func (s *Service) ChatList(ctx context.Context, caller Caller) ([]view.ChatEntry, error) {
	if err := requireRegistered(caller); err != nil {
		return nil, s.fail("chat_list", err)
	}

	seen := make(map[string]bool)
	var reqs []*request.Request
	for _, list := range []func(context.Context, string) ([]*request.Request, error){
		s.repos.Requests.ListByDriver,
		s.repos.Requests.ListByRider,
	} {
		got, err := list(ctx, caller.ID)
		if err != nil {
			return nil, s.fail("chat_list", err)
		}
		for _, r := range got {
			if !seen[r.ID] {
				seen[r.ID] = true
				reqs = append(reqs, r)
			}
		}
	}
	open, err := s.repos.Requests.ListOpen(ctx)
	if err != nil {
		return nil, s.fail("chat_list", err)
	}
	for _, r := range open {
		if !seen[r.ID] {
			seen[r.ID] = true
			reqs = append(reqs, r)
		}
	}

	rides := make([]*ride.Ride, 0)
	loaded := make(map[string]bool)
	for _, r := range reqs {
		if r.IsOpen() || r.Status != request.StatusAccepted || loaded[r.RideID] {
			continue
		}
		loaded[r.RideID] = true
		rd, err := s.repos.Rides.GetByID(ctx, r.RideID)
		if errors.Is(err, ride.ErrRideNotFound) {
			continue
		}
		if err != nil {
			return nil, s.fail("chat_list", err)
		}
		rides = append(rides, rd)
	}

	return view.ChatList(caller.ID, rides, reqs), nil
}
