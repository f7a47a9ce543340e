package marketplace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/service/matching"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// PostRide publishes a driver's ride offer. The route is the origin, the
// non-blank stops in order, then the destination.
func (s *Service) PostRide(ctx context.Context, caller Caller, draft ride.Draft) (*ride.Ride, error) {
	if err := requireDriver(caller); err != nil {
		return nil, s.fail("post_ride", err)
	}
	if missing := draft.MissingFields(); len(missing) > 0 {
		return nil, s.fail("post_ride", apperrors.Validation("Missing or invalid ride fields", missing...))
	}

	now := time.Now().UTC()
	rd := &ride.Ride{
		ID:             uuid.NewString(),
		DriverID:       caller.ID,
		DriverName:     caller.Name(),
		From:           strings.TrimSpace(draft.From),
		To:             strings.TrimSpace(draft.To),
		Stops:          ride.CleanStops(draft.Stops),
		Route:          ride.BuildRoute(draft.From, draft.To, draft.Stops),
		StartTime:      draft.StartTime.UTC(),
		AvailableSeats: draft.AvailableSeats,
		PricePerSeat:   draft.PricePerSeat.Round(2),
		Status:         ride.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if caller.Profile.Vehicle != nil {
		v := *caller.Profile.Vehicle
		rd.Vehicle = &v
	}

	if err := s.repos.Rides.Create(ctx, rd); err != nil {
		return nil, s.fail("post_ride", err)
	}

	s.logger.Info("Ride posted",
		logger.String("ride_id", rd.ID),
		logger.String("driver_id", rd.DriverID),
		logger.Strings("route", rd.Route),
		logger.Int("seats", rd.AvailableSeats),
		logger.Decimal("price_per_seat", rd.PricePerSeat),
	)
	s.nr.RecordRidePosted(rd.AvailableSeats, rd.PricePerSeat)
	s.publish(ctx, events.New(events.RidePosted, rd.ID, caller.ID, map[string]interface{}{
		"from":  rd.From,
		"to":    rd.To,
		"seats": rd.AvailableSeats,
	}))
	return rd, nil
}

// GetRide returns one ride
func (s *Service) GetRide(ctx context.Context, id string) (*ride.Ride, error) {
	rd, err := s.repos.Rides.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("get_ride", err)
	}
	return rd, nil
}

// SearchRides returns the active rides with free seats that match the
// criteria, ordered by start time
func (s *Service) SearchRides(ctx context.Context, criteria matching.Criteria) ([]*ride.Ride, error) {
	rides, err := s.repos.Rides.ListActive(ctx)
	if err != nil {
		return nil, s.fail("search_rides", err)
	}
	found := matching.FilterRides(rides, criteria)

	s.logger.Debug("Ride search",
		logger.String("from", criteria.From),
		logger.String("to", criteria.To),
		logger.Strings("route", criteria.Route),
		logger.Int("results", len(found)),
	)
	return found, nil
}

// ListMyRides returns every ride the driver posted
func (s *Service) ListMyRides(ctx context.Context, caller Caller) ([]*ride.Ride, error) {
	if err := requireDriver(caller); err != nil {
		return nil, s.fail("list_my_rides", err)
	}
	rides, err := s.repos.Rides.ListByDriver(ctx, caller.ID)
	if err != nil {
		return nil, s.fail("list_my_rides", err)
	}
	return rides, nil
}

// SuggestPrice asks the text generator for a per-seat price
func (s *Service) SuggestPrice(ctx context.Context, from, to string, at time.Time) (decimal.Decimal, error) {
	if s.suggester == nil {
		return decimal.Zero, apperrors.ErrSuggestionFailed
	}
	return s.suggester.SuggestPrice(ctx, from, to, at)
}

// SuggestRefinement asks the text generator to polish a note
func (s *Service) SuggestRefinement(ctx context.Context, text string) (string, error) {
	if s.suggester == nil {
		return "", apperrors.ErrSuggestionFailed
	}
	return s.suggester.SuggestRefinement(ctx, text)
}
